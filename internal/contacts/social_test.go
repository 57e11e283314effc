package contacts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tenkpostcards/leadscout/internal/junkfilter"
)

func TestExtractSocial(t *testing.T) {
	doc := docFromHTML(t, `<html><body>
		<a href="https://www.facebook.com/groups/hvac-owners">group</a>
		<a href="https://www.facebook.com/adamsheating">fb</a>
		<a href="https://www.instagram.com/p/Cxyz123/">post</a>
		<a href="https://www.instagram.com/adamsheating/">ig</a>
		<a href="https://www.linkedin.com/company/adams-heating">li</a>
		<a href="https://twitter.com/share?url=x">share</a>
		<a href="https://twitter.com/adamsheating">tw</a>
	</body></html>`)

	social := extractSocial(doc, "Adams Heating and Cooling", junkfilter.New(junkfilter.Options{}))
	require.Equal(t, "https://www.facebook.com/adamsheating", social["facebook"])
	require.Equal(t, "https://www.instagram.com/adamsheating/", social["instagram"])
	require.Equal(t, "https://www.linkedin.com/company/adams-heating", social["linkedin"])
	require.Equal(t, "https://twitter.com/adamsheating", social["twitter"])
}

func TestPlausibleTwitterHandle(t *testing.T) {
	require.True(t, plausibleTwitterHandle("https://twitter.com/adamsheating"))
	require.True(t, plausibleTwitterHandle("https://x.com/adamsheating"))
	require.False(t, plausibleTwitterHandle("https://twitter.com/share"))
	require.False(t, plausibleTwitterHandle("https://twitter.com/intent/tweet"))
	require.False(t, plausibleTwitterHandle("https://twitter.com/"))
}

func TestExtractNames(t *testing.T) {
	text := `Our owner Jane Doe answers every message at owner@adams-heating.com within a day. Monday Friday 9-5.`
	names := extractNames(text, []string{"owner@adams-heating.com"})
	require.Contains(t, names, "Jane Doe")
	require.NotContains(t, names, "Monday Friday")

	require.Empty(t, extractNames("no addresses here", []string{"missing@example.org"}))
}

func TestExtractNamesNonASCIIPrefix(t *testing.T) {
	// Dotted capital İ grows from two to three bytes under ToLower, which
	// would skew byte offsets computed against a lowered copy.
	text := strings.Repeat("İstanbul İzmir İçel ", 50) +
		`reach Jane Smith at Owner@Adams-Heating.com for quotes.`
	names := extractNames(text, []string{"owner@adams-heating.com"})
	require.Contains(t, names, "Jane Smith")
}
