// Package junkfilter decides whether a URL or search result is a genuine business
// homepage, as opposed to a directory, aggregator, social page, or unrelated
// article. Every web-search provider routes its results through the same Filter so
// accept/reject decisions are identical across the resolution cascade.
package junkfilter

import (
	"net/url"
	"strings"

	"github.com/tenkpostcards/leadscout/internal/lead"
)

// stopWords are tokens that carry no identity: articles, conjunctions, and the
// corporate suffixes business names accumulate.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "in": {},
	"at": {}, "for": {}, "on": {}, "by": {}, "to": {},
	"llc": {}, "inc": {}, "co": {}, "corp": {}, "company": {}, "ltd": {},
	"llp": {}, "pllc": {}, "pc": {}, "pa": {}, "plc": {},
	"studio": {}, "shop": {}, "store": {}, "salon": {}, "group": {},
	"services": {}, "service": {},
}

// nonHomepageExtensions are file types that are never a homepage.
var nonHomepageExtensions = []string{
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg",
	".zip", ".rar", ".mp3", ".mp4", ".avi",
}

// trackingParams mark redirect/click-tracking URLs rather than destinations.
var trackingParams = []string{"domain", "oref", "redirect", "psystem"}

// BizContext carries what is known about the business being matched.
type BizContext struct {
	Name  string
	City  string
	State string
	Zip   string
}

// Verdict is a single keep/reject decision with the reason that produced it.
type Verdict struct {
	Keep   bool
	Reason string
}

// Filter is the shared relevance oracle. Thresholds are configurable because they
// were tuned empirically, not derived; see config.FilterConfig.
type Filter struct {
	blocked       *blocklist
	minNameTokens int
	maxPathDepth  int
}

// Options tunes the filter heuristics. Zero values take the tuned defaults.
type Options struct {
	MinNameTokens int
	MaxPathDepth  int
}

// New constructs a Filter with the consolidated domain dataset loaded.
func New(opt Options) *Filter {
	minTokens := opt.MinNameTokens
	if minTokens <= 0 {
		minTokens = 2
	}
	maxDepth := opt.MaxPathDepth
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return &Filter{
		blocked:       newBlocklist(),
		minNameTokens: minTokens,
		maxPathDepth:  maxDepth,
	}
}

// EvaluateURL applies the URL-only checks plus the name heuristic against the
// hostname. Used when there is no title/snippet context (e.g. a vendor-supplied
// website field).
func (f *Filter) EvaluateURL(rawURL string, biz BizContext) Verdict {
	return f.Evaluate(lead.SearchResult{URL: rawURL}, biz)
}

// Evaluate runs the full keep/reject pipeline over one search result. The checks
// are ordered cheapest-first and the first rejection wins. Deterministic: equal
// inputs always yield equal verdicts.
func (f *Filter) Evaluate(res lead.SearchResult, biz BizContext) Verdict {
	u, err := url.Parse(strings.TrimSpace(res.URL))
	if err != nil || u.Host == "" {
		return Verdict{Keep: false, Reason: "unparseable url"}
	}
	host := strings.ToLower(u.Hostname())

	if f.blocked.IsBlocked(host) {
		return Verdict{Keep: false, Reason: "blocked domain"}
	}
	if reason, bad := badPath(u); bad {
		return Verdict{Keep: false, Reason: reason}
	}
	if depth := pathDepth(u.Path); depth > f.maxPathDepth {
		return Verdict{Keep: false, Reason: "deeply nested path"}
	}
	if !f.nameMatches(biz.Name, host, res.Title, res.Description) {
		return Verdict{Keep: false, Reason: "business name not found"}
	}
	if !f.locationMatches(biz, host, res.Title, res.Description) {
		return Verdict{Keep: false, Reason: "location not found"}
	}
	return Verdict{Keep: true}
}

func badPath(u *url.URL) (string, bool) {
	lowerPath := strings.ToLower(u.Path)
	for _, ext := range nonHomepageExtensions {
		if strings.HasSuffix(lowerPath, ext) {
			return "non-homepage file extension", true
		}
	}
	q := u.Query()
	for _, param := range trackingParams {
		if q.Has(param) {
			return "tracking or redirect parameter", true
		}
	}
	return "", false
}

func pathDepth(path string) int {
	depth := 0
	for _, seg := range strings.Split(path, "/") {
		if strings.TrimSpace(seg) != "" {
			depth++
		}
	}
	return depth
}

// SignificantTokens tokenizes a business name and drops stop words and
// single-character leftovers.
func SignificantTokens(name string) []string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	tokens := make([]string, 0, len(fields))
	for _, tok := range fields {
		if len(tok) < 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// nameMatches requires min(f.minNameTokens, tokenCount) significant name tokens to
// appear across hostname, title, and description. A threshold rather than an exact
// match: business names rarely appear verbatim in domains.
func (f *Filter) nameMatches(name, host, title, description string) bool {
	tokens := SignificantTokens(name)
	if len(tokens) == 0 {
		// Nothing to match against; URL-shape checks already passed.
		return true
	}
	required := f.minNameTokens
	if len(tokens) < required {
		required = len(tokens)
	}
	haystack := strings.ToLower(host + " " + title + " " + description)
	hostOnly := strings.ToLower(strings.ReplaceAll(host, "-", ""))
	hits := 0
	for _, tok := range tokens {
		if strings.Contains(haystack, tok) || strings.Contains(hostOnly, tok) {
			hits++
			if hits >= required {
				return true
			}
		}
	}
	return false
}

// locationMatches requires the ZIP, or the city together with the state, to appear
// in the result text. Skipped entirely when nothing about the location is known,
// and skipped for hosts that look like national chains, whose homepages do not
// mention any one city.
func (f *Filter) locationMatches(biz BizContext, host, title, description string) bool {
	if biz.Zip == "" && biz.City == "" {
		return true
	}
	if isNationalBrand(host, biz.City) {
		return true
	}
	haystack := strings.ToLower(title + " " + description)
	if biz.Zip != "" && strings.Contains(haystack, biz.Zip) {
		return true
	}
	if biz.City != "" {
		cityHit := strings.Contains(haystack, strings.ToLower(biz.City))
		stateHit := biz.State == "" || containsState(haystack, biz.State)
		if cityHit && stateHit {
			return true
		}
	}
	return false
}

// isNationalBrand guesses chain/national sites: a bare .com hostname that does not
// embed the city name.
func isNationalBrand(host, city string) bool {
	if !strings.HasSuffix(host, ".com") {
		return false
	}
	if city == "" {
		return true
	}
	cityToken := strings.ToLower(strings.ReplaceAll(city, " ", ""))
	return !strings.Contains(strings.ReplaceAll(host, "-", ""), cityToken)
}

func containsState(haystack, state string) bool {
	state = strings.ToLower(strings.TrimSpace(state))
	if state == "" {
		return true
	}
	// Word-boundary check so "NY" doesn't match inside "company".
	for i := 0; ; {
		idx := strings.Index(haystack[i:], state)
		if idx < 0 {
			return false
		}
		start := i + idx
		end := start + len(state)
		beforeOK := start == 0 || !isAlnum(haystack[start-1])
		afterOK := end >= len(haystack) || !isAlnum(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		i = end
	}
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
