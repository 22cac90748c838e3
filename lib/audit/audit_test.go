package audit

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCertificate(t *testing.T) *x509.Certificate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(42),
		Subject:      pkix.Name{CommonName: "audit test"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().AddDate(1, 0, 0),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func TestNewSetsBasicAttributes(t *testing.T) {
	t.Parallel()
	info := New("mykey", "pe-coff", crypto.SHA256)
	assert.Equal(t, "pe-coff", info.Attributes["sig.type"])
	assert.Equal(t, "mykey", info.Attributes["sig.keyname"])
	assert.Equal(t, "SHA-256", info.Attributes["sig.hash"])
	assert.NotZero(t, info.StartTime)
}

func TestSetX509Cert(t *testing.T) {
	t.Parallel()
	info := New("mykey", "pe-coff", crypto.SHA256)
	info.SetX509Cert(testCertificate(t))
	assert.Contains(t, info.Attributes["sig.x509.subject"], "audit test")
	assert.NotEmpty(t, info.Attributes["sig.x509.fingerprint"])
}

func TestSetTimestamp(t *testing.T) {
	t.Parallel()
	info := New("mykey", "pe-coff", crypto.SHA256)
	when := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	info.SetTimestamp(when)
	assert.Equal(t, when, info.Attributes["sig.timestamp"])
}

func TestMimeType(t *testing.T) {
	t.Parallel()
	info := New("mykey", "pe-coff", crypto.SHA256)
	assert.Equal(t, "application/octet-stream", info.GetMimeType())
	info.SetMimeType("application/x-msdownload")
	assert.Equal(t, "application/x-msdownload", info.GetMimeType())
}

func TestMarshalFillsElapsed(t *testing.T) {
	t.Parallel()
	info := New("mykey", "pe-coff", crypto.SHA256)
	blob, err := info.Marshal()
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(blob, &out))
	assert.Contains(t, out, "perf.elapsed.ms")
}

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()
	info := New("mykey", "pe-coff", crypto.SHA256)
	blob, err := info.Marshal()
	require.NoError(t, err)

	parsed, err := Parse(blob)
	require.NoError(t, err)
	assert.Equal(t, "pe-coff", parsed.Attributes["sig.type"])
	assert.Equal(t, "mykey", parsed.Attributes["sig.keyname"])
}

func TestParseEmptyBlob(t *testing.T) {
	t.Parallel()
	_, err := Parse(nil)
	assert.Error(t, err)
}

func TestParseSealedEnvelope(t *testing.T) {
	t.Parallel()
	inner := []byte(`{"sig.type":"cab"}`)
	outer, err := json.Marshal(map[string]interface{}{
		"attributes": "eyJzaWcudHlwZSI6ImNhYiJ9",
	})
	require.NoError(t, err)
	_ = inner

	parsed, err := Parse(outer)
	require.NoError(t, err)
	assert.Equal(t, "cab", parsed.Attributes["sig.type"])
}
