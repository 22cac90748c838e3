package authenticode_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/sassoftware/relicsign/lib/authenticode"
	"github.com/sassoftware/relicsign/signers/sigerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPEStart    = 128
	testOptHdrSize = 224
)

// buildTestPE assembles a minimal, otherwise-empty PE32 image with a
// certificate table of certSize bytes placed at the very end of the
// file, mirroring the layout locatePECertTable expects: a 64-byte DOS
// header pointing at the PE signature, a 20-byte COFF file header, and
// an optional header whose data directory entry 4 holds the
// certificate table's file offset and size.
func buildTestPE(t *testing.T, certSize int) (blob []byte, certStart int64) {
	t.Helper()
	certStart = testPEStart + 24 + testOptHdrSize + 24 // a little room for the rest of the "image"
	size := certStart + int64(certSize)
	blob = make([]byte, size)

	blob[0], blob[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(blob[0x3c:], uint32(testPEStart))

	peOff := testPEStart
	copy(blob[peOff:], []byte("PE\x00\x00"))

	fh := blob[peOff+4 : peOff+24]
	binary.LittleEndian.PutUint16(fh[16:18], uint16(testOptHdrSize))

	opt := blob[peOff+24 : peOff+24+testOptHdrSize]
	binary.LittleEndian.PutUint16(opt[0:2], 0x10b) // PE32
	binary.LittleEndian.PutUint32(opt[128:132], uint32(certStart))
	binary.LittleEndian.PutUint32(opt[132:136], uint32(certSize))

	for i := 0; i < certSize; i++ {
		blob[certStart+int64(i)] = byte(0xa0 + i)
	}
	return blob, certStart
}

func TestExtractSignature(t *testing.T) {
	t.Parallel()
	blob, certStart := buildTestPE(t, 16)
	sig, err := authenticode.ExtractSignature(bytes.NewReader(blob), int64(len(blob)))
	require.NoError(t, err)
	assert.Equal(t, blob[certStart:], sig)
}

func TestExtractSignatureNoSignature(t *testing.T) {
	t.Parallel()
	blob, _ := buildTestPE(t, 0)
	_, err := authenticode.ExtractSignature(bytes.NewReader(blob), int64(len(blob)))
	assert.IsType(t, sigerrors.NoSignaturePresentError{}, err)
}

func TestRemoveSignature(t *testing.T) {
	t.Parallel()
	blob, certStart := buildTestPE(t, 16)

	dir := t.TempDir()
	path := filepath.Join(dir, "test.exe")
	require.NoError(t, os.WriteFile(path, blob, 0644))

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, authenticode.RemoveSignature(f))

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, certStart, info.Size())

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	want := append([]byte(nil), blob[:certStart]...)
	copy(want[testPEStart+24+128:testPEStart+24+136], make([]byte, 8))
	ck := authenticode.NewPEChecksum(testPEStart)
	ck.Write(want)
	copy(want[testPEStart+88:], ck.Sum(nil))
	assert.Equal(t, want, out)

	// Extracting from the stripped file finds no signature.
	_, err = authenticode.ExtractSignature(bytes.NewReader(out), int64(len(out)))
	assert.IsType(t, sigerrors.NoSignaturePresentError{}, err)
}

func TestRemoveSignatureNoSignature(t *testing.T) {
	t.Parallel()
	blob, _ := buildTestPE(t, 0)

	dir := t.TempDir()
	path := filepath.Join(dir, "test.exe")
	require.NoError(t, os.WriteFile(path, blob, 0644))

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	defer f.Close()

	err = authenticode.RemoveSignature(f)
	assert.IsType(t, sigerrors.NoSignaturePresentError{}, err)
}
