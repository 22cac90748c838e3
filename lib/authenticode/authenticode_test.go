package authenticode_test

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/sassoftware/relicsign/lib/authenticode"
	"github.com/sassoftware/relicsign/lib/certloader"
	"github.com/sassoftware/relicsign/lib/pkcs9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testCert builds a minimal self-signed code-signing certificate/key
// pair, just enough for pkcs7.NewBuilder's "first certificate matches
// the signer" check to pass.
func testCert(t *testing.T) *certloader.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test signer"},
		NotBefore:    now,
		NotAfter:     now.AddDate(1, 0, 0),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return &certloader.Certificate{
		Leaf:         leaf,
		Certificates: []*x509.Certificate{leaf},
		PrivateKey:   key,
	}
}

func opusStatementOID(t *testing.T, sig *pkcs9.TimestampedSignature) string {
	t.Helper()
	require.NotNil(t, sig.SignerInfo)
	var stmt authenticode.SpcSpStatementType
	err := sig.SignerInfo.AuthenticatedAttributes.GetOne(authenticode.OidSpcStatementType, &stmt)
	require.NoError(t, err)
	return stmt.Type.String()
}

func TestSignSipIndividualStatement(t *testing.T) {
	t.Parallel()
	cert := testCert(t)
	sig, err := authenticode.SignSip(context.Background(), make([]byte, 32), crypto.SHA256, authenticode.SpcSipInfo{A: 1}, cert, &authenticode.OpusParams{
		Description: "a test program",
		URL:         "https://example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, authenticode.OidSpcIndividualPurpose.String(), opusStatementOID(t, sig))
}

func TestSignSipCommercialStatement(t *testing.T) {
	t.Parallel()
	cert := testCert(t)
	sig, err := authenticode.SignSip(context.Background(), make([]byte, 32), crypto.SHA256, authenticode.SpcSipInfo{A: 1}, cert, &authenticode.OpusParams{
		Commercial: true,
	})
	require.NoError(t, err)
	assert.Equal(t, authenticode.OidSpcCommercialPurpose.String(), opusStatementOID(t, sig))
}

func TestSignSipNoOpusParams(t *testing.T) {
	t.Parallel()
	cert := testCert(t)
	sig, err := authenticode.SignSip(context.Background(), make([]byte, 32), crypto.SHA256, authenticode.SpcSipInfo{A: 1}, cert, nil)
	require.NoError(t, err)
	assert.Equal(t, authenticode.OidSpcIndividualPurpose.String(), opusStatementOID(t, sig))
}
