package contacts

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var phonePattern = regexp.MustCompile(`(?:\+?1[\s.-]?)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}`)

// Words that, appearing shortly before a number, mark it as a phone number
// rather than an order ID or address.
var phoneContextWords = []string{"phone", "call", "tel", "contact", "reach", "dial"}

const phoneContextWindow = 32

// extractPhones returns normalized ten-digit US numbers found on the page.
// tel: links are trusted first, then numbers with phone-ish context, then
// context-free matches only when nothing better exists.
func extractPhones(doc *goquery.Document) []string {
	seen := make(map[string]bool)
	var trusted, contextual, bare []string

	add := func(bucket *[]string, raw string) {
		normalized, ok := normalizePhone(raw)
		if !ok || seen[normalized] {
			return
		}
		seen[normalized] = true
		*bucket = append(*bucket, normalized)
	}

	doc.Find("a[href^='tel:']").Each(func(_ int, s *goquery.Selection) {
		if href, exists := s.Attr("href"); exists {
			add(&trusted, strings.TrimPrefix(href, "tel:"))
		}
	})

	docCopy := doc.Clone()
	docCopy.Find("script, style, noscript").Remove()
	text := docCopy.Text()
	lower := strings.ToLower(text)

	for _, loc := range phonePattern.FindAllStringIndex(text, -1) {
		raw := text[loc[0]:loc[1]]
		if hasPhoneContext(lower, loc[0]) {
			add(&contextual, raw)
		} else {
			add(&bare, raw)
		}
	}

	out := append(trusted, contextual...)
	if len(out) == 0 {
		out = bare
	}
	return out
}

func hasPhoneContext(lower string, pos int) bool {
	start := pos - phoneContextWindow
	if start < 0 {
		start = 0
	}
	window := lower[start:pos]
	for _, w := range phoneContextWords {
		if strings.Contains(window, w) {
			return true
		}
	}
	return false
}

// normalizePhone reduces raw to digits and applies the US sanity rules:
// strip a leading country 1, require exactly ten digits, reject area codes
// starting with 0 or 1, and reject degenerate repeats (fewer than three
// distinct digits).
func normalizePhone(raw string) (string, bool) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	if len(d) != 10 {
		return "", false
	}
	if d[0] == '0' || d[0] == '1' {
		return "", false
	}
	distinct := make(map[byte]bool, 10)
	for i := 0; i < len(d); i++ {
		distinct[d[i]] = true
	}
	if len(distinct) < 3 {
		return "", false
	}
	return d, true
}
