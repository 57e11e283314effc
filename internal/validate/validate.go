// Package validate holds the input validators shared by every handler, most
// importantly the SSRF guard applied before any user- or vendor-supplied URL is
// fetched.
package validate

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"regexp"
	"strings"

	emailaddress "github.com/mcnijman/go-emailaddress"
)

// Validation failures the handlers surface verbatim as HTTP 400 messages.
var (
	ErrEmptyURL         = errors.New("URL is required")
	ErrBadScheme        = errors.New("only http and https URLs are allowed")
	ErrCredentialsInURL = errors.New("URLs with embedded credentials are not allowed")
	ErrBlockedHost      = errors.New("hostname is blocked")
	ErrPrivateIP        = errors.New("private IP addresses are not allowed")
	ErrEmptyHost        = errors.New("URL has no host")
)

// blockedHosts are internal/loopback names and cloud metadata endpoints that must
// never be fetched regardless of how they resolve.
var blockedHosts = map[string]struct{}{
	"localhost":                {},
	"127.0.0.1":                {},
	"0.0.0.0":                  {},
	"::1":                      {},
	"169.254.169.254":          {},
	"metadata.google.internal": {},
	"metadata.googleapis.com":  {},
	"instance-data":            {},
	"host.docker.internal":     {},
	"kubernetes.default.svc":   {},
}

// URL normalizes and validates a raw URL for outbound fetching. A missing scheme
// defaults to https. The literal host string is inspected; hostnames are not
// resolved, so DNS-rebinding SSRF is out of scope here.
func URL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrBadScheme
	}
	if u.User != nil {
		return "", ErrCredentialsInURL
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", ErrEmptyHost
	}
	if _, blocked := blockedHosts[host]; blocked {
		return "", ErrBlockedHost
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		if isForbiddenAddr(addr) {
			return "", ErrPrivateIP
		}
	}
	return u.String(), nil
}

// isForbiddenAddr rejects every range an outbound fetch must never reach:
// loopback, RFC1918 private, link-local, multicast, reserved (240/4),
// unspecified, and IPv6 unique-local.
func isForbiddenAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() || addr.IsMulticast() || addr.IsUnspecified() {
		return true
	}
	if addr.Is4() {
		b := addr.As4()
		// 240.0.0.0/4 reserved
		if b[0] >= 240 {
			return true
		}
	}
	if addr.Is6() {
		b := addr.As16()
		// fc00::/7 unique local
		if b[0]&0xfe == 0xfc {
			return true
		}
	}
	return false
}

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

// Email checks address format only; deliverability is the verifier's concern.
func Email(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("email is required")
	}
	if !emailPattern.MatchString(raw) {
		return errors.New("invalid email format")
	}
	if _, err := emailaddress.Parse(raw); err != nil {
		return errors.New("invalid email format")
	}
	return nil
}

// ZipCode requires exactly 5 ASCII digits.
func ZipCode(raw string) error {
	raw = strings.TrimSpace(raw)
	if len(raw) != 5 {
		return errors.New("zip code must be 5 digits")
	}
	for i := 0; i < 5; i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return errors.New("zip code must be 5 digits")
		}
	}
	return nil
}

// StringLength bounds a free-text field.
func StringLength(s string, minLen, maxLen int) error {
	n := len(strings.TrimSpace(s))
	if n < minLen {
		return fmt.Errorf("must be at least %d characters", minLen)
	}
	if maxLen > 0 && n > maxLen {
		return fmt.Errorf("must be at most %d characters", maxLen)
	}
	return nil
}
