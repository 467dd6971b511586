package labelcore

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for label and project persistence.
// The durable store is the single source of truth and the only point of
// serialization between concurrent requests.
type Repository interface {
	// Project operations
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, id uuid.UUID) (*Project, error)
	ListProjects(ctx context.Context, ownerID uuid.UUID) ([]*Project, error)

	// Label operations
	CreateLabel(ctx context.Context, label *Label) error
	GetLabel(ctx context.Context, id uuid.UUID) (*Label, error)
	ListLabels(ctx context.Context, projectID uuid.UUID) ([]*Label, error)
	DeleteLabel(ctx context.Context, id uuid.UUID) error

	// SiblingNames returns the names of all labels in a project, sorted.
	SiblingNames(ctx context.Context, projectID uuid.UUID) ([]string, error)

	// UpdateLabelIfVersion applies patch and increments the version only if
	// the stored version equals expected (compare-and-swap). On mismatch it
	// returns *VersionConflictError carrying the current stored version and
	// leaves the row untouched.
	UpdateLabelIfVersion(ctx context.Context, id uuid.UUID, expected int, patch LabelPatch) (*Label, error)
}

// BlobStore defines the interface for thumbnail artifact storage.
// Delete is idempotent: deleting an absent key is not an error.
type BlobStore interface {
	// Upload stores content at the given key, overwriting any previous object.
	Upload(ctx context.Context, key string, reader io.Reader) error

	// Download retrieves the content stored at key.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object at key.
	Delete(ctx context.Context, key string) error

	// SignURL returns a time-limited access URL for the object at key.
	SignURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// List returns the keys of all objects under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Cache defines the interface for the cache-aside read path.
// Get returns ErrCacheMiss for absent or expired keys.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Authorizer answers ownership questions for the scoping checks that every
// operation performs before touching data.
type Authorizer interface {
	OwnsProject(ctx context.Context, userID, projectID uuid.UUID) (bool, error)
	OwnsLabel(ctx context.Context, userID, labelID uuid.UUID) (bool, error)
}

// EventSink defines the interface for lifecycle event handling. Sink
// failures are logged and never fail the triggering operation.
type EventSink interface {
	LabelCreated(ctx context.Context, label *Label) error
	LabelUpdated(ctx context.Context, label *Label) error
	LabelDeleted(ctx context.Context, labelID uuid.UUID) error
}
