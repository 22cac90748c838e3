package pecoff

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sassoftware/relicsign/lib/authenticode"
)

func TestFormatOpusNil(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", FormatOpus(nil))
}

func TestFormatOpusEmpty(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", FormatOpus(&authenticode.SpcSpOpusInfo{}))
}

func TestFormatOpusDescriptionOnly(t *testing.T) {
	t.Parallel()
	name := authenticode.NewSpcString("my program")
	out := FormatOpus(&authenticode.SpcSpOpusInfo{ProgramName: &name})
	assert.Equal(t, `[desc:"my program"]`, out)
}

func TestFormatOpusURLOnly(t *testing.T) {
	t.Parallel()
	out := FormatOpus(&authenticode.SpcSpOpusInfo{MoreInfo: &authenticode.SpcLink{URL: "https://example.com"}})
	assert.Equal(t, `[url:"https://example.com"]`, out)
}

func TestFormatOpusBoth(t *testing.T) {
	t.Parallel()
	name := authenticode.NewSpcString("my program")
	out := FormatOpus(&authenticode.SpcSpOpusInfo{
		ProgramName: &name,
		MoreInfo:    &authenticode.SpcLink{URL: "https://example.com"},
	})
	assert.Equal(t, `[desc:"my program"][url:"https://example.com"]`, out)
}
