package shared_test

import (
	"errors"
	"testing"

	"github.com/sassoftware/relicsign/cmdline/shared"
	"github.com/sassoftware/relicsign/signers/sigerrors"
	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0, shared.ExitCode(nil))
	assert.Equal(t, 1, shared.ExitCode(sigerrors.DigestMismatchError{}))
	assert.Equal(t, 1, shared.ExitCode(sigerrors.ChecksumMismatchError{}))
	assert.Equal(t, -1, shared.ExitCode(sigerrors.ArgError{Msg: "bad"}))
	assert.Equal(t, -1, shared.ExitCode(errors.New("anything else")))
}

func TestResolveInOut(t *testing.T) {
	t.Parallel()

	in, out, err := shared.ResolveInOut("", "", []string{"a.exe", "b.exe"})
	assert.NoError(t, err)
	assert.Equal(t, "a.exe", in)
	assert.Equal(t, "b.exe", out)

	in, out, err = shared.ResolveInOut("x.exe", "y.exe", nil)
	assert.NoError(t, err)
	assert.Equal(t, "x.exe", in)
	assert.Equal(t, "y.exe", out)

	in, out, err = shared.ResolveInOut("x.exe", "", []string{"y.exe"})
	assert.NoError(t, err)
	assert.Equal(t, "x.exe", in)
	assert.Equal(t, "y.exe", out)

	_, _, err = shared.ResolveInOut("", "", nil)
	assert.IsType(t, sigerrors.ArgError{}, err)

	_, _, err = shared.ResolveInOut("", "", []string{"a.exe"})
	assert.IsType(t, sigerrors.ArgError{}, err)

	_, _, err = shared.ResolveInOut("", "", []string{"a.exe", "b.exe", "c.exe"})
	assert.IsType(t, sigerrors.ArgError{}, err)
}

func TestResolveIn(t *testing.T) {
	t.Parallel()

	in, err := shared.ResolveIn("", []string{"a.exe"})
	assert.NoError(t, err)
	assert.Equal(t, "a.exe", in)

	in, err = shared.ResolveIn("x.exe", nil)
	assert.NoError(t, err)
	assert.Equal(t, "x.exe", in)

	_, err = shared.ResolveIn("", nil)
	assert.IsType(t, sigerrors.ArgError{}, err)

	_, err = shared.ResolveIn("", []string{"a.exe", "b.exe"})
	assert.IsType(t, sigerrors.ArgError{}, err)
}
