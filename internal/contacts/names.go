package contacts

import (
	"regexp"
	"strings"
)

var capitalizedPair = regexp.MustCompile(`\b([A-Z][a-z]+)\s+([A-Z][a-z]+)\b`)

// Words that look like names but are page furniture.
var notNames = map[string]struct{}{
	"contact": {}, "about": {}, "email": {}, "phone": {}, "call": {},
	"privacy": {}, "policy": {}, "terms": {}, "service": {}, "services": {},
	"home": {}, "page": {}, "main": {}, "street": {}, "suite": {},
	"monday": {}, "tuesday": {}, "wednesday": {}, "thursday": {}, "friday": {},
	"saturday": {}, "sunday": {}, "united": {}, "states": {},
}

const nameWindow = 120

// extractNames finds capitalized word pairs near a kept email. Pure
// heuristic; an empty result is the common case.
func extractNames(text string, emails []string) []string {
	var names []string
	seen := make(map[string]bool)

	for _, email := range emails {
		idx := strings.Index(text, email)
		if idx < 0 {
			idx = indexFold(text, email)
		}
		if idx < 0 {
			continue
		}
		start := idx - nameWindow
		if start < 0 {
			start = 0
		}
		end := idx + len(email) + nameWindow
		if end > len(text) {
			end = len(text)
		}

		for _, m := range capitalizedPair.FindAllStringSubmatch(text[start:end], -1) {
			first, last := m[1], m[2]
			if _, bad := notNames[strings.ToLower(first)]; bad {
				continue
			}
			if _, bad := notNames[strings.ToLower(last)]; bad {
				continue
			}
			full := first + " " + last
			if !seen[full] {
				seen[full] = true
				names = append(names, full)
			}
		}
	}
	return names
}

// indexFold is a case-insensitive strings.Index over the original text, so
// window offsets stay valid even when lowering would change byte lengths.
func indexFold(s, sub string) int {
	if sub == "" || len(sub) > len(s) {
		return -1
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(sub)], sub) {
			return i
		}
	}
	return -1
}
