package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// GCSStore writes scrapes to a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCS creates a GCS-backed store.
func NewGCS(client *storage.Client, bucket string) (*GCSStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Save uploads data to the configured bucket.
func (s *GCSStore) Save(ctx context.Context, key string, data []byte) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("key is required")
	}
	writer := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	writer.ContentType = "text/html"
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}
