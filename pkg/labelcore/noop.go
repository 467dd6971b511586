package labelcore

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// NoopBlobStore is the null-object BlobStore used when no storage backend
// is configured. Every method reports ErrStorageUnavailable, which the
// asset coordinator degrades to an absent thumbnail.
type NoopBlobStore struct{}

// NewNoopBlobStore creates a new no-operation blob store.
func NewNoopBlobStore() BlobStore {
	return &NoopBlobStore{}
}

func (n *NoopBlobStore) Upload(ctx context.Context, key string, reader io.Reader) error {
	return ErrStorageUnavailable
}

func (n *NoopBlobStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, ErrStorageUnavailable
}

func (n *NoopBlobStore) Delete(ctx context.Context, key string) error {
	return ErrStorageUnavailable
}

func (n *NoopBlobStore) SignURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "", ErrStorageUnavailable
}

func (n *NoopBlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	return nil, ErrStorageUnavailable
}

// NoopCache is the null-object Cache used when caching is disabled. Reads
// always miss and writes are discarded, so every read recomputes from the
// durable store.
type NoopCache struct{}

// NewNoopCache creates a new no-operation cache.
func NewNoopCache() Cache {
	return &NoopCache{}
}

func (n *NoopCache) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, ErrCacheMiss
}

func (n *NoopCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (n *NoopCache) Delete(ctx context.Context, keys ...string) error {
	return nil
}

func (n *NoopCache) DeletePrefix(ctx context.Context, prefix string) error {
	return nil
}

// NoopEventSink is a no-operation implementation of EventSink.
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink.
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) LabelCreated(ctx context.Context, label *Label) error {
	return nil
}

func (n *NoopEventSink) LabelUpdated(ctx context.Context, label *Label) error {
	return nil
}

func (n *NoopEventSink) LabelDeleted(ctx context.Context, labelID uuid.UUID) error {
	return nil
}

// LoggingEventSink logs lifecycle events and takes no other action.
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates an event sink that logs through the given
// slog logger.
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

func (l *LoggingEventSink) LabelCreated(ctx context.Context, label *Label) error {
	l.logger.Info("label created", "label_id", label.ID, "project_id", label.ProjectID, "name", label.Name)
	return nil
}

func (l *LoggingEventSink) LabelUpdated(ctx context.Context, label *Label) error {
	l.logger.Info("label updated", "label_id", label.ID, "version", label.Version)
	return nil
}

func (l *LoggingEventSink) LabelDeleted(ctx context.Context, labelID uuid.UUID) error {
	l.logger.Info("label deleted", "label_id", labelID)
	return nil
}
