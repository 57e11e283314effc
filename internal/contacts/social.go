package contacts

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tenkpostcards/leadscout/internal/junkfilter"
)

// extractSocial collects one profile URL per platform from the page's links.
// Facebook and Instagram links are gated by the canonical-profile rules;
// LinkedIn and Twitter only need a plausible path.
func extractSocial(doc *goquery.Document, businessName string, filter *junkfilter.Filter) map[string]string {
	social := make(map[string]string)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists {
			return
		}
		href = strings.TrimSpace(href)
		lower := strings.ToLower(href)

		switch {
		case social["facebook"] == "" && strings.Contains(lower, "facebook.com/"):
			if filter.FacebookProfile(href, businessName) {
				social["facebook"] = href
			}
		case social["instagram"] == "" && strings.Contains(lower, "instagram.com/"):
			if filter.InstagramProfile(href, businessName) {
				social["instagram"] = href
			}
		case social["linkedin"] == "" && strings.Contains(lower, "linkedin.com/"):
			if strings.Contains(lower, "/company/") || strings.Contains(lower, "/in/") {
				social["linkedin"] = href
			}
		case social["twitter"] == "" && (strings.Contains(lower, "twitter.com/") || strings.Contains(lower, "x.com/")):
			if plausibleTwitterHandle(lower) {
				social["twitter"] = href
			}
		}
	})
	return social
}

var twitterExcluded = map[string]struct{}{
	"share": {}, "intent": {}, "home": {}, "search": {}, "hashtag": {}, "i": {},
}

func plausibleTwitterHandle(lower string) bool {
	idx := strings.Index(lower, ".com/")
	if idx < 0 {
		return false
	}
	path := strings.Trim(lower[idx+len(".com/"):], "/")
	if path == "" || strings.Contains(path, "/") {
		return false
	}
	if q := strings.IndexAny(path, "?#"); q >= 0 {
		path = path[:q]
	}
	_, excluded := twitterExcluded[path]
	return !excluded && path != ""
}
