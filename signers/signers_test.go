package signers

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sassoftware/relicsign/lib/magic"
	"github.com/sassoftware/relicsign/signers/sigerrors"
)

func testSigner(t *testing.T) *Signer {
	t.Helper()
	s := &Signer{
		Name:    "test-format",
		Aliases: []string{"tf"},
		Magic:   magic.FileTypeCAB,
		TestPath: func(name string) bool {
			return strings.HasSuffix(name, ".tf")
		},
	}
	registered = append(registered, s)
	t.Cleanup(func() {
		for i, r := range registered {
			if r == s {
				registered = append(registered[:i], registered[i+1:]...)
				break
			}
		}
	})
	return s
}

func TestByName(t *testing.T) {
	s := testSigner(t)
	assert.Same(t, s, ByName("test-format"))
	assert.Same(t, s, ByName("tf"))
	assert.Nil(t, ByName("does-not-exist"))
}

func TestByMagic(t *testing.T) {
	s := testSigner(t)
	assert.Same(t, s, ByMagic(magic.FileTypeCAB))
	assert.Nil(t, ByMagic(magic.FileTypeUnknown))
}

func TestByFileName(t *testing.T) {
	testSigner(t)
	assert.NotNil(t, ByFileName("package.tf"))
	assert.Nil(t, ByFileName("package.exe"))
}

func TestByFileWithExplicitType(t *testing.T) {
	s := testSigner(t)
	mod, err := ByFile("anything", "test-format")
	require.NoError(t, err)
	assert.Same(t, s, mod)

	_, err = ByFile("anything", "no-such-type")
	assert.Error(t, err)
}

func TestByFileDetectsByMagic(t *testing.T) {
	testSigner(t)
	dir := t.TempDir()
	name := filepath.Join(dir, "package.bin")
	require.NoError(t, os.WriteFile(name, []byte("MSCF\x00\x00\x00\x00"), 0644))

	mod, err := ByFile(name, "")
	require.NoError(t, err)
	assert.Equal(t, "test-format", mod.Name)
}

func TestByFileDetectsByExtensionFallback(t *testing.T) {
	testSigner(t)
	dir := t.TempDir()
	name := filepath.Join(dir, "package.tf")
	require.NoError(t, os.WriteFile(name, []byte("not recognized content"), 0644))

	mod, err := ByFile(name, "")
	require.NoError(t, err)
	assert.Equal(t, "test-format", mod.Name)
}

func TestByFileUnknown(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "package.bin")
	require.NoError(t, os.WriteFile(name, []byte("not recognized content"), 0644))

	_, err := ByFile(name, "")
	assert.Error(t, err)
}

func TestByFileRejectsStdin(t *testing.T) {
	_, err := ByFile("-", "")
	assert.Error(t, err)
}

func TestIsSignedUsesVerifyStream(t *testing.T) {
	s := testSigner(t)
	s.VerifyStream = func(io.Reader, VerifyOpts) (*Signature, error) {
		return nil, sigerrors.NotSignedError{Type: "test-format"}
	}
	signed, err := s.IsSigned(nil)
	require.NoError(t, err)
	assert.False(t, signed)
}

func TestIsSignedFoundSignature(t *testing.T) {
	s := testSigner(t)
	s.Verify = func(*os.File, VerifyOpts) (*Signature, error) {
		return &Signature{}, nil
	}
	signed, err := s.IsSigned(nil)
	require.NoError(t, err)
	assert.True(t, signed)
}

func TestIsSignedPropagatesOtherErrors(t *testing.T) {
	s := testSigner(t)
	s.Verify = func(*os.File, VerifyOpts) (*Signature, error) {
		return nil, io.ErrUnexpectedEOF
	}
	_, err := s.IsSigned(nil)
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestIsSignedRequiresVerifier(t *testing.T) {
	s := testSigner(t)
	_, err := s.IsSigned(nil)
	assert.Error(t, err)
}

func TestSignatureSignerName(t *testing.T) {
	sig := &Signature{Signer: "explicit name"}
	assert.Equal(t, "explicit name", sig.SignerName())

	sig2 := &Signature{}
	assert.Equal(t, "UNKNOWN", sig2.SignerName())
}
