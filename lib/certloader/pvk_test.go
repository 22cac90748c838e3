package certloader_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/sassoftware/relicsign/lib/certloader"
	"github.com/sassoftware/relicsign/lib/passprompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBitlen = 512

// buildTestPVK assembles an unencrypted PVK file around key, matching the
// CryptoAPI PRIVATEKEYBLOB layout ParsePVK expects: little-endian byte
// arrays for each RSA field, sized off a fixed bit length.
func buildTestPVK(t *testing.T, key *rsa.PrivateKey) []byte {
	t.Helper()
	modLen := testBitlen / 8
	halfLen := testBitlen / 16

	le := func(x *big.Int, n int) []byte {
		be := x.FillBytes(make([]byte, n))
		out := make([]byte, n)
		for i, v := range be {
			out[n-1-i] = v
		}
		return out
	}

	blob := make([]byte, 20+modLen+halfLen*5)
	blob[0] = 0x07 // PRIVATEKEYBLOB
	binary.LittleEndian.PutUint32(blob[8:12], 0x32415352) // "RSA2"
	binary.LittleEndian.PutUint32(blob[12:16], uint32(testBitlen))
	binary.LittleEndian.PutUint32(blob[16:20], uint32(key.PublicKey.E))

	pos := 20
	put := func(b []byte) {
		copy(blob[pos:], b)
		pos += len(b)
	}
	put(le(key.N, modLen))
	put(le(key.Primes[0], halfLen))
	put(le(key.Primes[1], halfLen))
	pos += halfLen * 3 // exponent1, exponent2, coefficient: unused by ParsePVK
	put(le(key.D, modLen))

	header := make([]byte, 24)
	binary.LittleEndian.PutUint32(header[0:4], 0xb0b5f11e)
	binary.LittleEndian.PutUint32(header[16:20], 0) // saltlen
	binary.LittleEndian.PutUint32(header[20:24], uint32(len(blob)))
	return append(header, blob...)
}

func TestParsePVKUnencrypted(t *testing.T) {
	t.Parallel()
	key, err := rsa.GenerateKey(rand.Reader, testBitlen)
	require.NoError(t, err)

	pvk := buildTestPVK(t, key)
	parsed, err := certloader.ParsePVK(pvk, passprompt.FixedPassword(""))
	require.NoError(t, err)

	assert.Equal(t, key.N, parsed.N)
	assert.Equal(t, key.D, parsed.D)
	assert.Equal(t, key.E, parsed.E)
}

func TestParsePVKBadMagic(t *testing.T) {
	t.Parallel()
	_, err := certloader.ParsePVK(make([]byte, 24), passprompt.FixedPassword(""))
	assert.Error(t, err)
}

func TestParsePVKTruncated(t *testing.T) {
	t.Parallel()
	_, err := certloader.ParsePVK(make([]byte, 10), passprompt.FixedPassword(""))
	assert.Error(t, err)
}
