// Package fs provides a filesystem BlobStore. Signed URLs are built from a
// configurable prefix with an HMAC token over (key, expiry), so a serving
// frontend can verify them without shared storage state.
package fs

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/printforge/labelcore/pkg/labelcore"
)

// Config options for the filesystem backend.
type Config struct {
	BaseDir   string // Base directory for storing objects
	URLPrefix string // URL prefix for signed URLs (e.g. "http://localhost:8080/blobs")
	URLSecret string // HMAC secret for URL tokens
}

// Backend is a filesystem implementation of the labelcore.BlobStore interface.
type Backend struct {
	mu        sync.RWMutex
	baseDir   string
	urlPrefix string
	urlSecret []byte
}

// New creates a new filesystem storage backend.
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if err := os.MkdirAll(config.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		baseDir:   config.BaseDir,
		urlPrefix: strings.TrimSuffix(config.URLPrefix, "/"),
		urlSecret: []byte(config.URLSecret),
	}, nil
}

func (b *Backend) path(key string) string {
	return filepath.Join(b.baseDir, filepath.FromSlash(key))
}

func (b *Backend) Upload(ctx context.Context, key string, reader io.Reader) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	filePath := b.path(key)
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return &labelcore.StorageError{Key: key, Op: "upload", Err: err}
	}

	file, err := os.Create(filePath)
	if err != nil {
		return &labelcore.StorageError{Key: key, Op: "upload", Err: err}
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return &labelcore.StorageError{Key: key, Op: "upload", Err: err}
	}
	return nil
}

func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	file, err := os.Open(b.path(key))
	if os.IsNotExist(err) {
		return nil, &labelcore.StorageError{Key: key, Op: "download", Err: labelcore.ErrObjectNotFound}
	} else if err != nil {
		return nil, &labelcore.StorageError{Key: key, Op: "download", Err: err}
	}
	return file, nil
}

// Delete is idempotent: deleting an absent key is not an error.
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.Remove(b.path(key)); err != nil && !os.IsNotExist(err) {
		return &labelcore.StorageError{Key: key, Op: "delete", Err: err}
	}
	return nil
}

func (b *Backend) SignURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	expires := time.Now().Add(ttl).Unix()
	return fmt.Sprintf("%s/%s?expires=%d&token=%s",
		b.urlPrefix, key, expires, b.token(key, expires)), nil
}

func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var keys []string
	err := filepath.WalkDir(b.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(b.baseDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, &labelcore.StorageError{Key: prefix, Op: "list", Err: err}
	}
	return keys, nil
}

// VerifyURLToken checks a token produced by SignURL and that the URL has
// not expired. Serving frontends call this before streaming the file.
func (b *Backend) VerifyURLToken(key, token string, expires int64) bool {
	if time.Now().Unix() > expires {
		return false
	}
	return hmac.Equal([]byte(token), []byte(b.token(key, expires)))
}

func (b *Backend) token(key string, expires int64) string {
	mac := hmac.New(sha256.New, b.urlSecret)
	mac.Write([]byte(key))
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}
