package signers

import (
	"net/url"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withFlagMap(t *testing.T, m map[string][]string) {
	t.Helper()
	backup := flagMap
	flagMap = m
	t.Cleanup(func() { flagMap = backup })
}

func TestFlagsFromCmdline(t *testing.T) {
	s := testSigner(t)
	s.Flags().Bool("myflag", false, "")
	withFlagMap(t, map[string][]string{"myflag": {s.Name}})

	fs := pflag.NewFlagSet("cmd", pflag.ContinueOnError)
	fs.AddFlagSet(common)
	fs.AddFlagSet(s.Flags())
	require.NoError(t, fs.Set("myflag", "true"))

	values, err := s.FlagsFromCmdline(fs)
	require.NoError(t, err)
	assert.True(t, values.GetBool("myflag"))
}

func TestFlagsFromCmdlineDefaultsWhenUnchanged(t *testing.T) {
	s := testSigner(t)
	s.Flags().String("myflag", "default-value", "")
	withFlagMap(t, map[string][]string{"myflag": {s.Name}})

	fs := pflag.NewFlagSet("cmd", pflag.ContinueOnError)
	fs.AddFlagSet(common)
	fs.AddFlagSet(s.Flags())

	values, err := s.FlagsFromCmdline(fs)
	require.NoError(t, err)
	assert.Equal(t, "default-value", values.GetString("myflag"))
}

func TestFlagsFromCmdlineRejectsUnownedFlag(t *testing.T) {
	s := testSigner(t)
	s.Flags().Bool("myflag", false, "")
	withFlagMap(t, map[string][]string{"myflag": {"some-other-format"}})

	fs := pflag.NewFlagSet("cmd", pflag.ContinueOnError)
	fs.AddFlagSet(common)
	fs.AddFlagSet(s.Flags())
	require.NoError(t, fs.Set("myflag", "true"))

	_, err := s.FlagsFromCmdline(fs)
	assert.Error(t, err)
}

func TestFlagValuesToQuery(t *testing.T) {
	values := &FlagValues{Values: map[string]string{"a": "1", "b": "2"}}
	q := make(url.Values)
	require.NoError(t, values.ToQuery(q))
	assert.Equal(t, []string{"1"}, q["a"])
	assert.Equal(t, []string{"2"}, q["b"])
}

func TestGetBoolParsesStringValue(t *testing.T) {
	values := &FlagValues{Values: map[string]string{"no-timestamp": "true"}}
	assert.True(t, values.GetBool("no-timestamp"))
}

func TestGetStringPanicsOnUnknownFlag(t *testing.T) {
	values := &FlagValues{Values: map[string]string{}}
	assert.Panics(t, func() {
		values.GetString("does-not-exist-anywhere")
	})
}
