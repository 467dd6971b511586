// Package memory provides an in-memory BlobStore for tests and local
// development. Signed URLs are synthetic "memory://" URLs carrying the key
// and an expiry; ResolveKey recovers the key so tests can verify that two
// successively signed URLs resolve to the same stored bytes.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/printforge/labelcore/pkg/labelcore"
)

// Backend is an in-memory implementation of the labelcore.BlobStore interface.
type Backend struct {
	mu      sync.RWMutex
	objects map[string][]byte
	signSeq int
}

// New creates a new in-memory storage backend.
func New() *Backend {
	return &Backend{objects: make(map[string][]byte)}
}

func (b *Backend) Upload(ctx context.Context, key string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[key]
	if !exists {
		return nil, &labelcore.StorageError{Key: key, Op: "download", Err: labelcore.ErrObjectNotFound}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete is idempotent: deleting an absent key is not an error.
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *Backend) SignURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	b.mu.Lock()
	b.signSeq++
	seq := b.signSeq
	b.mu.Unlock()

	expires := time.Now().Add(ttl).Unix()
	return fmt.Sprintf("memory:///%s?expires=%d&seq=%d", key, expires, seq), nil
}

func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var keys []string
	for key := range b.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// ResolveKey extracts the object key from a URL previously returned by
// SignURL.
func ResolveKey(signedURL string) (string, error) {
	u, err := url.Parse(signedURL)
	if err != nil {
		return "", err
	}
	if u.Scheme != "memory" {
		return "", fmt.Errorf("not a memory url: %s", signedURL)
	}
	return strings.TrimPrefix(u.Path, "/"), nil
}
