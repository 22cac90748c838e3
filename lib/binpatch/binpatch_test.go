package binpatch

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyReplacesRange(t *testing.T) {
	t.Parallel()
	p := New()
	p.Add(5, 3, []byte("XXXXX"))

	var out bytes.Buffer
	in := bytes.NewReader([]byte("0123456789"))
	require.NoError(t, p.Apply(in, &out))
	assert.Equal(t, "01234XXXXX89", out.String())
}

func TestApplyInsertion(t *testing.T) {
	t.Parallel()
	p := New()
	p.Add(5, 0, []byte("INSERTED"))

	var out bytes.Buffer
	in := bytes.NewReader([]byte("0123456789"))
	require.NoError(t, p.Apply(in, &out))
	assert.Equal(t, "01234INSERTED56789", out.String())
}

func TestApplyMultiplePatchesOutOfOrderAdd(t *testing.T) {
	t.Parallel()
	p := New()
	p.Add(8, 2, []byte("Z"))
	p.Add(2, 2, []byte("Y"))

	var out bytes.Buffer
	in := bytes.NewReader([]byte("0123456789"))
	require.NoError(t, p.Apply(in, &out))
	assert.Equal(t, "01Y4567Z", out.String())
}

func TestApplyRejectsOverlap(t *testing.T) {
	t.Parallel()
	p := New()
	p.Add(5, 4, []byte("A"))
	p.Add(6, 2, []byte("B"))

	var out bytes.Buffer
	in := bytes.NewReader([]byte("0123456789"))
	assert.Error(t, p.Apply(in, &out))
}

func TestDumpLoadRoundTrip(t *testing.T) {
	t.Parallel()
	p := New()
	p.Add(1, 2, []byte("hi"))
	blob := p.Dump()

	loaded, err := Load(blob)
	require.NoError(t, err)
	assert.Equal(t, p.Patches, loaded.Patches)
	assert.Equal(t, p.Blobs, loaded.Blobs)
}

func TestApplyToFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.bin")
	outPath := filepath.Join(dir, "out.bin")
	require.NoError(t, os.WriteFile(inPath, []byte("0123456789"), 0644))

	infile, err := os.Open(inPath)
	require.NoError(t, err)
	defer infile.Close()

	p := New()
	p.Add(0, 4, []byte("abcd"))
	require.NoError(t, p.ApplyToFile(infile, outPath))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "abcd456789", string(data))
}
