package junkfilter

import (
	"net/url"
	"strings"
)

// Non-profile path segments per platform: share dialogs, posts, reels, groups,
// events — anything that is not the business's own page.
var facebookExcludedSegments = map[string]struct{}{
	"groups": {}, "events": {}, "photos": {}, "videos": {}, "posts": {},
	"watch": {}, "sharer": {}, "share": {}, "login": {}, "marketplace": {},
	"hashtag": {}, "stories": {}, "reel": {}, "reels": {}, "notes": {},
	"help": {}, "policies": {}, "pages": {}, "public": {}, "people": {},
}

var instagramExcludedSegments = map[string]struct{}{
	"p": {}, "reel": {}, "reels": {}, "stories": {}, "explore": {},
	"tv": {}, "accounts": {}, "direct": {}, "about": {}, "developer": {},
	"legal": {}, "directory": {}, "tags": {},
}

// FacebookProfile reports whether rawURL is a canonical Facebook page/profile URL
// whose slug plausibly belongs to the named business.
func (f *Filter) FacebookProfile(rawURL, businessName string) bool {
	slug, ok := profileSlug(rawURL, []string{"facebook.com", "fb.com"}, facebookExcludedSegments)
	if !ok {
		return false
	}
	return f.slugMatchesName(slug, businessName)
}

// InstagramProfile is the Instagram counterpart of FacebookProfile.
func (f *Filter) InstagramProfile(rawURL, businessName string) bool {
	slug, ok := profileSlug(rawURL, []string{"instagram.com"}, instagramExcludedSegments)
	if !ok {
		return false
	}
	return f.slugMatchesName(slug, businessName)
}

// profileSlug extracts the first path segment when the URL is on the platform and
// the path is a plain profile shape (one segment, not an excluded section).
func profileSlug(rawURL string, hosts []string, excluded map[string]struct{}) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	onPlatform := false
	for _, h := range hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			onPlatform = true
			break
		}
	}
	if !onPlatform {
		return "", false
	}
	segments := []string{}
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	if len(segments) != 1 {
		return "", false
	}
	slug := strings.ToLower(segments[0])
	if _, bad := excluded[slug]; bad {
		return "", false
	}
	return slug, true
}

// slugMatchesName runs the significant-token heuristic against the profile slug.
func (f *Filter) slugMatchesName(slug, businessName string) bool {
	tokens := SignificantTokens(businessName)
	if len(tokens) == 0 {
		return false
	}
	required := f.minNameTokens
	if len(tokens) < required {
		required = len(tokens)
	}
	flat := strings.ToLower(strings.NewReplacer("-", "", ".", "", "_", "").Replace(slug))
	hits := 0
	for _, tok := range tokens {
		if strings.Contains(flat, tok) {
			hits++
			if hits >= required {
				return true
			}
		}
	}
	return false
}
