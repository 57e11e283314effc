package ratelimit

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCheckFixedWindow(t *testing.T) {
	l := New(Config{})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	opt := Options{Limit: 2, Window: 60 * time.Second, KeyPrefix: "search"}

	d1 := l.Check("alice@example.com", opt)
	require.True(t, d1.Allowed)
	require.Equal(t, 1, d1.Remaining)

	d2 := l.Check("alice@example.com", opt)
	require.True(t, d2.Allowed)
	require.Equal(t, 0, d2.Remaining)

	d3 := l.Check("alice@example.com", opt)
	require.False(t, d3.Allowed)
	require.LessOrEqual(t, d3.RetryAfter, 60*time.Second)
	require.Greater(t, d3.RetryAfter, time.Duration(0))

	// A different identifier has its own window.
	require.True(t, l.Check("bob@example.com", opt).Allowed)

	// Same identifier under a different prefix is a separate window too.
	require.True(t, l.Check("alice@example.com", Options{Limit: 2, Window: time.Minute, KeyPrefix: "enrich"}).Allowed)
}

func TestCheckWindowReset(t *testing.T) {
	l := New(Config{})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	opt := Options{Limit: 1, Window: 60 * time.Second, KeyPrefix: "p"}

	require.True(t, l.Check("id", opt).Allowed)
	require.False(t, l.Check("id", opt).Allowed)

	now = now.Add(61 * time.Second)
	require.True(t, l.Check("id", opt).Allowed)
}

func TestGCBoundsMemory(t *testing.T) {
	l := New(Config{})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	opt := Options{Limit: 5, Window: time.Minute, KeyPrefix: "p"}

	for _, id := range []string{"a", "b", "c"} {
		l.Check(id, opt)
	}
	require.Len(t, l.windows, 3)

	// Six minutes later the first GC pass should purge all idle entries.
	now = now.Add(6 * time.Minute)
	l.Check("fresh", opt)
	require.Len(t, l.windows, 1)
}

func TestIdentifierFromRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/v1/search/here", nil)
	r.Header.Set("X-User-Email", "User@Example.com")
	require.Equal(t, "user@example.com", IdentifierFromRequest(r))

	r = httptest.NewRequest("POST", "/v1/search/here", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	require.Equal(t, "203.0.113.7", IdentifierFromRequest(r))

	r = httptest.NewRequest("POST", "/v1/search/here", nil)
	r.RemoteAddr = "203.0.113.9:4711"
	require.Equal(t, "203.0.113.9", IdentifierFromRequest(r))

	r = httptest.NewRequest("POST", "/v1/search/here", nil)
	r.RemoteAddr = ""
	require.Equal(t, "unknown", IdentifierFromRequest(r))
}

func TestIdentifierFromRequestBodyField(t *testing.T) {
	body := `{"zip":"14221","userEmail":"Body@Example.com"}`
	r := httptest.NewRequest("POST", "/v1/search/here", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	require.Equal(t, "body@example.com", IdentifierFromRequest(r))

	// The handler still gets the untouched payload after the peek.
	raw, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	require.JSONEq(t, body, string(raw))

	// Header beats body, body beats query.
	r = httptest.NewRequest("POST", "/v1/search/here?userEmail=query@example.com", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	require.Equal(t, "body@example.com", IdentifierFromRequest(r))
	r.Header.Set("X-User-Email", "header@example.com")
	require.Equal(t, "header@example.com", IdentifierFromRequest(r))

	// Malformed JSON falls through to the query value.
	r = httptest.NewRequest("POST", "/v1/search/here?userEmail=query@example.com", strings.NewReader("{nope"))
	r.Header.Set("Content-Type", "application/json")
	require.Equal(t, "query@example.com", IdentifierFromRequest(r))
}
