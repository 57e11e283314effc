package contacts

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mcnijman/go-emailaddress"
)

// blockedEmailDomains are domains that appear in page source but never belong
// to the business: trackers, hosting platforms, CDNs, payment processors.
var blockedEmailDomains = []string{
	"sentry.io",
	"sentry-cdn.com",
	"wixpress.com",
	"squarespace.com",
	"godaddy.com",
	"google-analytics.com",
	"googletagmanager.com",
	"cloudflare.com",
	"gstatic.com",
	"fonts.googleapis.com",
	"schema.org",
	"example.com",
	"stripe.com",
	"paypal.com",
	"shopify.com",
	"automattic.com",
	"wordpress.org",
	"w3.org",
}

var blockedEmailPrefixes = []string{
	"noreply@",
	"no-reply@",
	"no_reply@",
	"mailer-daemon@",
}

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico"}

// Obfuscation forms seen on small-business sites. Spacing is optional around
// the bracketed tokens; the bare " at " / " dot " form requires surrounding
// spaces to avoid mangling prose.
var deobfuscations = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\s*\[\s*at\s*\]\s*`), "@"},
	{regexp.MustCompile(`(?i)\s*\(\s*at\s*\)\s*`), "@"},
	{regexp.MustCompile(`(?i)\s*\[\s*dot\s*\]\s*`), "."},
	{regexp.MustCompile(`(?i)\s*\(\s*dot\s*\)\s*`), "."},
	{regexp.MustCompile(`(?i)(\w)\s+at\s+(\w+(?:\s+dot\s+\w+)+)`), "$1@$2"},
	{regexp.MustCompile(`(?i)(\w)\s+dot\s+(\w)`), "$1.$2"},
}

// deobfuscate rewrites the common email obfuscation forms to plain addresses.
func deobfuscate(text string) string {
	for _, d := range deobfuscations {
		text = d.re.ReplaceAllString(text, d.repl)
	}
	return text
}

// extractEmails pulls addresses from a page. mailto: links are trusted over
// bare text hits, so they sort first in the returned slice.
func extractEmails(doc *goquery.Document) []string {
	var emails []string
	seen := make(map[string]bool)

	keep := func(addr string) {
		lower := strings.ToLower(strings.TrimSpace(addr))
		if lower == "" || seen[lower] || !acceptableEmail(lower) {
			return
		}
		seen[lower] = true
		emails = append(emails, lower)
	}

	doc.Find("a[href^='mailto:'], a[href^='Mailto:'], a[href^='MAILTO:']").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists {
			return
		}
		value := strings.TrimSpace(href)
		if strings.HasPrefix(strings.ToLower(value), "mailto:") {
			value = value[len("mailto:"):]
		}
		if idx := strings.Index(value, "?"); idx >= 0 {
			value = value[:idx]
		}
		keep(value)
	})

	docCopy := doc.Clone()
	docCopy.Find("script, style, noscript").Remove()
	text := deobfuscate(docCopy.Text())

	for _, addr := range emailaddress.Find([]byte(text), false) {
		keep(addr.String())
	}
	return emails
}

// acceptableEmail rejects syntactically invalid addresses, automated
// mailboxes, tracker domains, and asset filenames that look like addresses
// (logo@2x.png and friends).
func acceptableEmail(lower string) bool {
	if _, err := emailaddress.Parse(lower); err != nil {
		return false
	}
	for _, prefix := range blockedEmailPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}

	at := strings.LastIndex(lower, "@")
	local, domain := lower[:at], lower[at+1:]

	if strings.Contains(local, "@2x") || strings.HasPrefix(domain, "2x.") {
		return false
	}
	for _, ext := range imageExtensions {
		if strings.HasSuffix(domain, ext) || strings.HasSuffix(local, ext) {
			return false
		}
	}
	for _, blocked := range blockedEmailDomains {
		if domain == blocked || strings.HasSuffix(domain, "."+blocked) {
			return false
		}
	}
	return true
}

// filterByDomainAffinity keeps only the emails whose domain matches the site
// host when at least one such email exists. A site's own addresses are always
// better than whatever third-party addresses leaked into the page.
func filterByDomainAffinity(emails []string, host string) []string {
	siteRoot := rootToken(host)
	if siteRoot == "" {
		return emails
	}
	var matched []string
	for _, e := range emails {
		at := strings.LastIndex(e, "@")
		if at < 0 {
			continue
		}
		if rootToken(e[at+1:]) == siteRoot {
			matched = append(matched, e)
		}
	}
	if len(matched) > 0 {
		return matched
	}
	return emails
}

// rootToken returns the registrable label of a hostname: "www.adams-heating.com"
// yields "adams-heating".
func rootToken(host string) string {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}
