package contacts

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func docFromHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestDeobfuscate(t *testing.T) {
	cases := map[string]string{
		"info[at]example-biz[dot]com":   "info@example-biz.com",
		"info [at] example-biz [dot] com": "info@example-biz.com",
		"info(at)example-biz(dot)com":   "info@example-biz.com",
		"sales at examplebiz dot com":   "sales@examplebiz.com",
	}
	for in, want := range cases {
		require.Equal(t, want, deobfuscate(in), "input %q", in)
	}
}

func TestExtractEmailsObfuscatedAndBlocked(t *testing.T) {
	doc := docFromHTML(t, `<html><body>
		<p>Write us: info [at] example-biz [dot] com</p>
		<script>window.SENTRY_DSN="tracking@sentry.io";</script>
		<img src="logo@2x.png">
	</body></html>`)

	emails := extractEmails(doc)
	require.Equal(t, []string{"info@example-biz.com"}, emails)
}

func TestExtractEmailsMailtoTrustedFirst(t *testing.T) {
	doc := docFromHTML(t, `<html><body>
		<p>other@elsewhere.org</p>
		<a href="mailto:Owner@Example-Biz.com?subject=hi">Email us</a>
	</body></html>`)

	emails := extractEmails(doc)
	require.Equal(t, "owner@example-biz.com", emails[0])
	require.Contains(t, emails, "other@elsewhere.org")
}

func TestAcceptableEmail(t *testing.T) {
	require.True(t, acceptableEmail("owner@adamsheating.com"))
	require.False(t, acceptableEmail("not-an-email"))
	require.False(t, acceptableEmail("noreply@adamsheating.com"))
	require.False(t, acceptableEmail("tracking@sentry.io"))
	require.False(t, acceptableEmail("abc123@sentry-cdn.com"))
	require.False(t, acceptableEmail("user@o123.ingest.sentry.io"))
	require.False(t, acceptableEmail("logo@2x.png"))
	require.False(t, acceptableEmail("icon@site.svg"))
}

func TestFilterByDomainAffinity(t *testing.T) {
	emails := []string{"hello@gmail.com", "owner@adams-heating.com", "info@adams-heating.com"}
	got := filterByDomainAffinity(emails, "www.adams-heating.com")
	require.Equal(t, []string{"owner@adams-heating.com", "info@adams-heating.com"}, got)

	// No matching domain: everything survives.
	got = filterByDomainAffinity([]string{"hello@gmail.com"}, "adams-heating.com")
	require.Equal(t, []string{"hello@gmail.com"}, got)
}

func TestRootToken(t *testing.T) {
	require.Equal(t, "adams-heating", rootToken("www.adams-heating.com"))
	require.Equal(t, "example-biz", rootToken("example-biz.com"))
	require.Empty(t, rootToken("localhost"))
}
