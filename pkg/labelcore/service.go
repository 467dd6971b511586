package labelcore

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the label lifecycle operations exposed to callers.
//
// Every operation verifies the caller's ownership of the touched project or
// label first and reports ErrProjectNotFound/ErrLabelNotFound when it does
// not hold. Thumbnail failures never fail an operation: the label record is
// the source of truth and the thumbnail a best-effort projection of it.
type Service interface {
	// Project operations (scoping context only)
	CreateProject(ctx context.Context, req CreateProjectRequest) (*Project, error)
	ListProjects(ctx context.Context, userID uuid.UUID) ([]*Project, error)

	// Label lifecycle operations
	CreateLabel(ctx context.Context, req CreateLabelRequest) (*Label, error)
	DuplicateLabel(ctx context.Context, req DuplicateLabelRequest) (*Label, error)
	CreateBulk(ctx context.Context, req CreateBulkRequest) (*BulkResult, error)
	CreateBulkUnique(ctx context.Context, req CreateBulkUniqueRequest) (*BulkResult, error)
	UpdateLabel(ctx context.Context, req UpdateLabelRequest) (*Label, error)
	DeleteLabel(ctx context.Context, req DeleteLabelRequest) error

	// Read path (cache-aside)
	GetLabel(ctx context.Context, req GetLabelRequest) (*Label, error)
	ListLabels(ctx context.Context, req ListLabelsRequest) ([]*Label, error)
}
