package signinit

import (
	"testing"

	"github.com/sassoftware/relicsign/lib/passprompt"
	"github.com/sassoftware/relicsign/signers/sigerrors"
	"github.com/stretchr/testify/assert"
)

func TestPasswordGetter(t *testing.T) {
	t.Parallel()
	assert.Equal(t, passprompt.FixedPassword("hunter2"), passwordGetter("hunter2"))
	assert.Equal(t, passprompt.TerminalPrompt{}, passwordGetter(""))
}

func TestLoadCertificateRequiresASource(t *testing.T) {
	t.Parallel()
	_, err := LoadCertificate(KeyArgs{})
	assert.IsType(t, sigerrors.ArgError{}, err)
}

func TestLoadCertificateMissingFiles(t *testing.T) {
	t.Parallel()
	_, err := LoadCertificate(KeyArgs{Pkcs12File: "/nonexistent/bundle.p12"})
	assert.IsType(t, sigerrors.KeyLoadFailedError{}, err)

	_, err = LoadCertificate(KeyArgs{SpcFile: "/nonexistent/cert.spc", KeyFile: "/nonexistent/key.pem"})
	assert.IsType(t, sigerrors.KeyLoadFailedError{}, err)

	_, err = LoadCertificate(KeyArgs{SpcFile: "/nonexistent/cert.spc", PvkFile: "/nonexistent/key.pvk"})
	assert.IsType(t, sigerrors.KeyLoadFailedError{}, err)
}
