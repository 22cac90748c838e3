package sigerrors_test

import (
	"errors"
	"testing"

	"github.com/sassoftware/relicsign/signers/sigerrors"
	"github.com/stretchr/testify/assert"
)

func TestErrorStrings(t *testing.T) {
	t.Parallel()
	cases := []error{
		sigerrors.ArgError{Msg: "bad flag"},
		sigerrors.FileTooShortError{},
		sigerrors.UnknownFormatError{},
		sigerrors.CabFlagsUnsupportedError{},
		sigerrors.PeUnknownMagicError{},
		sigerrors.PeMissingCertDirError{},
		sigerrors.PeSignatureNotAtEndError{},
		sigerrors.NoSignaturePresentError{Type: "PE"},
		sigerrors.KeyLoadFailedError{Err: errors.New("bad password")},
		sigerrors.SignerSelectionFailedError{},
		sigerrors.TimestampTransportError{Err: errors.New("connection refused")},
		sigerrors.TimestampFormatError{Err: errors.New("bad asn1")},
		sigerrors.TimestampRejectedError{Status: 2},
		sigerrors.DigestMismatchError{Expected: []byte{1}, Actual: []byte{2}},
		sigerrors.ChecksumMismatchError{Expected: 1, Actual: 2},
		sigerrors.CryptoVerifyFailedError{Err: errors.New("bad signature")},
	}
	for _, err := range cases {
		assert.NotEmpty(t, err.Error())
	}
}

func TestUnwrap(t *testing.T) {
	t.Parallel()
	cause := errors.New("underlying failure")

	var keyErr sigerrors.KeyLoadFailedError
	assert.True(t, errors.As(sigerrors.KeyLoadFailedError{Err: cause}, &keyErr))
	assert.Equal(t, cause, errors.Unwrap(keyErr))

	wrapped := errors.New("wrapping: " + cause.Error())
	assert.Error(t, wrapped)

	tsErr := sigerrors.TimestampTransportError{Err: cause}
	assert.ErrorIs(t, tsErr, cause)

	fmtErr := sigerrors.TimestampFormatError{Err: cause}
	assert.ErrorIs(t, fmtErr, cause)

	cryptoErr := sigerrors.CryptoVerifyFailedError{Err: cause}
	assert.ErrorIs(t, cryptoErr, cause)
}

func TestNoSignaturePresentErrorType(t *testing.T) {
	t.Parallel()
	err := sigerrors.NoSignaturePresentError{Type: "PE"}
	assert.Contains(t, err.Error(), "PE")
}
