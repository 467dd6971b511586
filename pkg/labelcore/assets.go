package labelcore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// DefaultSignTTL is the default lifetime of signed thumbnail URLs.
const DefaultSignTTL = time.Hour

// ThumbnailKey returns the deterministic storage key for a label's
// thumbnail variant. No randomness and no timestamps: re-uploads for the
// same (label, size) overwrite the previous artifact, and the key is always
// reproducible from the label ID alone.
func ThumbnailKey(labelID uuid.UUID, size ThumbnailSize) string {
	return fmt.Sprintf("labels/%s/thumbnails/%s", labelID, size)
}

// ThumbnailPrefix returns the storage key prefix covering every thumbnail
// variant of a label.
func ThumbnailPrefix(labelID uuid.UUID) string {
	return fmt.Sprintf("labels/%s/thumbnails/", labelID)
}

// AssetCoordinator manages the derived thumbnail artifacts of labels.
//
// All storage operations are non-authoritative side effects: on any storage
// failure the coordinator logs a warning and returns zero values instead of
// an error. A label without a resolvable thumbnail is a valid, displayable
// state, and the next upload or refresh self-heals it.
type AssetCoordinator struct {
	store   BlobStore
	signTTL time.Duration
	logger  *slog.Logger
}

// NewAssetCoordinator creates a coordinator over the given blob store.
func NewAssetCoordinator(store BlobStore, signTTL time.Duration, logger *slog.Logger) *AssetCoordinator {
	if signTTL <= 0 {
		signTTL = DefaultSignTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AssetCoordinator{store: store, signTTL: signTTL, logger: logger}
}

// UploadThumbnail replaces the artifact for (labelID, size): it deletes any
// existing object at the deterministic key, uploads the new bytes, then
// signs an access URL. Transient upload failures are retried briefly before
// the coordinator degrades.
//
// Returns the signed URL and the storage key. On upload failure both are
// empty; on sign failure only the URL is empty (the artifact is stored and
// a later refresh can produce a URL).
func (c *AssetCoordinator) UploadThumbnail(ctx context.Context, labelID uuid.UUID, data []byte, size ThumbnailSize) (url, key string) {
	key = ThumbnailKey(labelID, size)

	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Warn("thumbnail cleanup failed", "key", key, "error", err)
	}

	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(100*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := c.store.Upload(ctx, key, bytes.NewReader(data)); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("thumbnail upload failed", "key", key, "error", err)
		return "", ""
	}

	url, err = c.store.SignURL(ctx, key, c.signTTL)
	if err != nil {
		c.logger.Warn("thumbnail url signing failed", "key", key, "error", err)
		return "", key
	}
	return url, key
}

// UploadAllSizes uploads one pre-rendered image per variant, fanning out
// concurrently. Each size is independent: a failure in one never prevents
// the others. Returns the signed URL per size that succeeded.
func (c *AssetCoordinator) UploadAllSizes(ctx context.Context, labelID uuid.UUID, images map[ThumbnailSize][]byte) map[ThumbnailSize]string {
	urls := make(map[ThumbnailSize]string, len(images))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for size, data := range images {
		wg.Add(1)
		go func(size ThumbnailSize, data []byte) {
			defer wg.Done()
			if url, _ := c.UploadThumbnail(ctx, labelID, data, size); url != "" {
				mu.Lock()
				urls[size] = url
				mu.Unlock()
			}
		}(size, data)
	}
	wg.Wait()

	return urls
}

// RefreshURL signs a fresh access URL for an existing artifact without
// touching the stored bytes. Signed URLs expire independently of the
// object's lifetime, so callers re-request them on every read.
func (c *AssetCoordinator) RefreshURL(ctx context.Context, labelID uuid.UUID, size ThumbnailSize) string {
	url, err := c.store.SignURL(ctx, ThumbnailKey(labelID, size), c.signTTL)
	if err != nil {
		c.logger.Warn("thumbnail url refresh failed", "label_id", labelID, "size", size, "error", err)
		return ""
	}
	return url
}

// CloneThumbnails copies every stored variant of src to dst as fresh
// artifacts, never sharing storage objects between labels. Absent variants
// are skipped. Returns the medium-variant key when it was cloned, which is
// what the duplicate label records as its thumbnail reference.
func (c *AssetCoordinator) CloneThumbnails(ctx context.Context, srcID, dstID uuid.UUID) (mediumKey string) {
	for _, size := range ThumbnailSizes() {
		rc, err := c.store.Download(ctx, ThumbnailKey(srcID, size))
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			c.logger.Warn("thumbnail clone read failed", "label_id", srcID, "size", size, "error", err)
			continue
		}

		key := ThumbnailKey(dstID, size)
		if err := c.store.Upload(ctx, key, bytes.NewReader(data)); err != nil {
			c.logger.Warn("thumbnail clone upload failed", "key", key, "error", err)
			continue
		}
		if size == SizeMedium {
			mediumKey = key
		}
	}
	return mediumKey
}

// DeleteAll removes every stored thumbnail variant of a label. Called when
// the label is deleted; failures leave orphaned objects behind, which is
// accepted (the deterministic prefix makes them sweepable).
func (c *AssetCoordinator) DeleteAll(ctx context.Context, labelID uuid.UUID) {
	keys, err := c.store.List(ctx, ThumbnailPrefix(labelID))
	if err != nil {
		c.logger.Warn("thumbnail listing failed", "label_id", labelID, "error", err)
		return
	}
	for _, key := range keys {
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Warn("thumbnail delete failed", "key", key, "error", err)
		}
	}
}
