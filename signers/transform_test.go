package signers

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sassoftware/relicsign/lib/binpatch"
)

func TestGetTransformDefault(t *testing.T) {
	s := &Signer{Name: "no-transform"}
	f, err := os.CreateTemp(t.TempDir(), "in")
	require.NoError(t, err)
	defer f.Close()

	transform, err := s.GetTransform(f, SignOpts{})
	require.NoError(t, err)
	_, ok := transform.(fileProducer)
	assert.True(t, ok)
}

func TestGetTransformCustom(t *testing.T) {
	called := false
	s := &Signer{Name: "has-transform", Transform: func(*os.File, SignOpts) (Transformer, error) {
		called = true
		return fileProducer{}, nil
	}}
	_, err := s.GetTransform(nil, SignOpts{})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestFileProducerGetReader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0644))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	p := fileProducer{f}
	r, size, err := p.GetReader()
	require.NoError(t, err)
	assert.Equal(t, int64(11), size)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestFileProducerApplyPlain(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")
	p := fileProducer{}
	require.NoError(t, p.Apply(dest, "application/octet-stream", bytes.NewReader([]byte("signed bytes"))))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "signed bytes", string(data))
}

func TestFileProducerApplyBinPatch(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.bin")
	outPath := filepath.Join(dir, "out.bin")
	require.NoError(t, os.WriteFile(inPath, []byte("0123456789"), 0644))
	f, err := os.Open(inPath)
	require.NoError(t, err)
	defer f.Close()

	patch := binpatch.New()
	patch.Add(0, 4, []byte("abcd"))

	p := fileProducer{f}
	require.NoError(t, p.Apply(outPath, binpatch.MimeType, bytes.NewReader(patch.Dump())))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "abcd456789", string(data))
}
