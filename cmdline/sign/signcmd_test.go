package sign

import (
	"testing"

	"github.com/sassoftware/relicsign/signers/sigerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetArgs() {
	argSpc, argKey, argPkcs12, argPvk, argPass = "", "", "", "", ""
	argJp, argTsURL, argMsURL, argProxy = "", "", "", ""
}

func TestParseKeyAndTimestampArgsRequiresOneSource(t *testing.T) {
	resetArgs()
	defer resetArgs()
	_, _, err := parseKeyAndTimestampArgs()
	assert.IsType(t, sigerrors.ArgError{}, err)
}

func TestParseKeyAndTimestampArgsSpcKey(t *testing.T) {
	resetArgs()
	defer resetArgs()
	argSpc, argKey = "cert.spc", "key.pem"
	keyArgs, _, err := parseKeyAndTimestampArgs()
	require.NoError(t, err)
	assert.Equal(t, "cert.spc", keyArgs.SpcFile)
	assert.Equal(t, "key.pem", keyArgs.KeyFile)
}

func TestParseKeyAndTimestampArgsRejectsMultipleSources(t *testing.T) {
	resetArgs()
	defer resetArgs()
	argSpc, argKey, argPkcs12 = "cert.spc", "key.pem", "bundle.p12"
	_, _, err := parseKeyAndTimestampArgs()
	assert.IsType(t, sigerrors.ArgError{}, err)
}

func TestParseKeyAndTimestampArgsRejectsBothTimestampFlags(t *testing.T) {
	resetArgs()
	defer resetArgs()
	argPkcs12 = "bundle.p12"
	argTsURL, argMsURL = "https://t.example.com", "https://ts.example.com"
	_, _, err := parseKeyAndTimestampArgs()
	assert.IsType(t, sigerrors.ArgError{}, err)
}

func TestParseKeyAndTimestampArgsRejectsHighAndMediumPageHashes(t *testing.T) {
	for _, level := range []string{"medium", "high"} {
		resetArgs()
		argPkcs12 = "bundle.p12"
		argJp = level
		_, _, err := parseKeyAndTimestampArgs()
		assert.IsType(t, sigerrors.ArgError{}, err, "jp=%s should be rejected", level)
	}
	resetArgs()
}

func TestParseKeyAndTimestampArgsAcceptsLowPageHashes(t *testing.T) {
	resetArgs()
	defer resetArgs()
	argPkcs12 = "bundle.p12"
	argJp = "low"
	_, _, err := parseKeyAndTimestampArgs()
	assert.NoError(t, err)
}

func TestParseKeyAndTimestampArgsLegacyTimestamp(t *testing.T) {
	resetArgs()
	defer resetArgs()
	argPkcs12 = "bundle.p12"
	argMsURL = "https://ts.example.com"
	argProxy = "http://proxy.example.com"
	_, ts, err := parseKeyAndTimestampArgs()
	require.NoError(t, err)
	assert.Equal(t, "https://ts.example.com", ts.URL)
	assert.True(t, ts.Legacy)
	assert.Equal(t, "http://proxy.example.com", ts.Proxy)
}
