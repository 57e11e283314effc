package contacts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"(716) 555-1234", "7165551234", true},
		{"+1 716.555.1234", "7165551234", true},
		{"1-716-555-1234", "7165551234", true},
		{"716555123", "", false},       // nine digits
		{"07165551234", "", false},     // leading zero after strip fails length
		{"(016) 555-1234", "", false},  // area code starts with 0
		{"(116) 555-1234", "", false},  // area code starts with 1
		{"2222222323", "", false},      // two distinct digits
		{"5555551234", "5555551234", true},
	}
	for _, tc := range cases {
		got, ok := normalizePhone(tc.in)
		require.Equal(t, tc.ok, ok, "input %q", tc.in)
		require.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestExtractPhonesContextBeatsBare(t *testing.T) {
	doc := docFromHTML(t, `<html><body>
		<p>Order #716 555 9999 shipped 2024</p>
		<p>Call us today: (716) 555-1234</p>
	</body></html>`)

	phones := extractPhones(doc)
	require.Equal(t, []string{"7165551234"}, phones)
}

func TestExtractPhonesTelLinkTrusted(t *testing.T) {
	doc := docFromHTML(t, `<html><body>
		<a href="tel:+17165550000">Tap to call</a>
		<p>Phone: 716-555-1234</p>
	</body></html>`)

	phones := extractPhones(doc)
	require.Equal(t, []string{"7165550000", "7165551234"}, phones)
}

func TestExtractPhonesBareOnlyWhenNothingBetter(t *testing.T) {
	doc := docFromHTML(t, `<html><body><p>716-555-1234</p></body></html>`)
	require.Equal(t, []string{"7165551234"}, extractPhones(doc))
}
