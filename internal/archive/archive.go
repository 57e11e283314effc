// Package archive persists raw fetched pages. The abstraction keeps the
// contact extractor independent of where scrapes land (GCS, local disk,
// memory, or nowhere).
package archive

import (
	"context"
	"fmt"
	"time"
)

// Store saves a blob under a key.
type Store interface {
	Save(ctx context.Context, key string, data []byte) error
}

// Noop discards everything. Useful for dry runs.
type Noop struct{}

// Save does nothing and always returns nil.
func (Noop) Save(_ context.Context, _ string, _ []byte) error {
	return nil
}

// PageKey builds the archive key for a scraped page.
func PageKey(host string, at time.Time) string {
	return fmt.Sprintf("scrapes/%s/%d.html", host, at.UnixMilli())
}
