package magic

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func padTo(b []byte, n int) []byte {
	if len(b) >= n {
		return b
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func TestDetectPECOFF(t *testing.T) {
	t.Parallel()
	blob := make([]byte, 0x40+4)
	copy(blob, "MZ")
	blob[0x3c] = 0x40
	copy(blob[0x40:], "PE\x00\x00")
	assert.Equal(t, FileTypePECOFF, Detect(bytes.NewReader(blob)))
}

func TestDetectMZWithoutPEHeader(t *testing.T) {
	t.Parallel()
	blob := padTo([]byte("MZ"), 0x40)
	assert.Equal(t, FileTypeUnknown, Detect(bytes.NewReader(blob)))
}

func TestDetectMSI(t *testing.T) {
	t.Parallel()
	blob := []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1, 0, 0, 0, 0}
	assert.Equal(t, FileTypeMSI, Detect(bytes.NewReader(blob)))
}

func TestDetectCAB(t *testing.T) {
	t.Parallel()
	blob := []byte("MSCF\x00\x00\x00\x00")
	assert.Equal(t, FileTypeCAB, Detect(bytes.NewReader(blob)))
}

func TestDetectPKCS7(t *testing.T) {
	t.Parallel()
	blob := []byte{0x30, 0x82, 0x01, 0x00, 0x06, 0x09, 0x2A, 0x86, 0x48, 0x86, 0xF7, 0x0D, 0x01, 0x07, 0x02}
	assert.Equal(t, FileTypePKCS7, Detect(bytes.NewReader(blob)))
}

func TestDetectUnknown(t *testing.T) {
	t.Parallel()
	assert.Equal(t, FileTypeUnknown, Detect(bytes.NewReader([]byte("not a recognized format"))))
}

func TestDetectCompressedPlain(t *testing.T) {
	t.Parallel()
	blob := []byte("MSCF\x00\x00\x00\x00")
	ft, ct := DetectCompressed(bytes.NewReader(blob))
	assert.Equal(t, FileTypeCAB, ft)
	assert.Equal(t, CompressedNone, ct)
}

func TestDetectCompressedGzip(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte("MSCF\x00\x00\x00\x00"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	ft, ct := DetectCompressed(bytes.NewReader(buf.Bytes()))
	assert.Equal(t, FileTypeCAB, ft)
	assert.Equal(t, CompressedGzip, ct)
}

func TestDetectCompressedTooShort(t *testing.T) {
	t.Parallel()
	ft, ct := DetectCompressed(bytes.NewReader([]byte{0x1f}))
	assert.Equal(t, FileTypeUnknown, ft)
	assert.Equal(t, CompressedNone, ct)
}
