package atomicfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommit(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")

	f, err := New(dest)
	require.NoError(t, err)
	_, err = f.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, f.Commit())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestCommitOverwritesExisting(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")
	require.NoError(t, os.WriteFile(dest, []byte("old contents"), 0644))

	f, err := New(dest)
	require.NoError(t, err)
	_, err = f.Write([]byte("new"))
	require.NoError(t, err)
	require.NoError(t, f.Commit())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestCloseWithoutCommitDiscards(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")

	f, err := New(dest)
	require.NoError(t, err)
	tempName := f.GetFile().Name()
	_, err = f.Write([]byte("discarded"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(tempName)
	assert.True(t, os.IsNotExist(err))
}

func TestCommitAfterCloseErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	f, err := New(filepath.Join(dir, "out.bin"))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Error(t, f.Commit())
}

func TestWriteInPlaceSameFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")
	require.NoError(t, os.WriteFile(dest, []byte("x"), 0644))

	src, err := os.OpenFile(dest, os.O_RDWR, 0644)
	require.NoError(t, err)
	defer src.Close()

	f, err := WriteInPlace(src, dest)
	require.NoError(t, err)
	assert.Same(t, src, f.GetFile())
	require.NoError(t, f.Commit())
}

func TestWriteInPlaceDifferentFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.bin")
	dest := filepath.Join(dir, "out.bin")
	require.NoError(t, os.WriteFile(srcPath, []byte("x"), 0644))

	src, err := os.Open(srcPath)
	require.NoError(t, err)
	defer src.Close()

	f, err := WriteInPlace(src, dest)
	require.NoError(t, err)
	assert.NotSame(t, src, f.GetFile())
	_, err = f.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, f.Commit())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestWriteAnyRegularFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")

	f, err := WriteAny(dest)
	require.NoError(t, err)
	_, err = f.Write([]byte("regular"))
	require.NoError(t, err)
	require.NoError(t, f.Commit())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "regular", string(data))
}
