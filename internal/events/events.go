// Package events publishes lifecycle notifications for discovered and
// enriched businesses.
package events

import (
	"context"
	"time"

	"github.com/tenkpostcards/leadscout/internal/lead"
)

// Event types.
const (
	TypeBusinessDiscovered = "business.discovered"
	TypeBusinessEnriched   = "business.enriched"
)

// Event is one lifecycle notification.
type Event struct {
	Type     string        `json:"type"`
	Business lead.Business `json:"business"`
	At       time.Time     `json:"at"`
}

// Publisher delivers events. Publishing is best-effort everywhere it is used;
// callers log failures and move on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Noop drops every event.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(_ context.Context, _ Event) error { return nil }
