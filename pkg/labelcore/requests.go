package labelcore

import (
	"encoding/json"

	"github.com/google/uuid"
)

// CreateProjectRequest contains parameters for creating a project.
type CreateProjectRequest struct {
	UserID uuid.UUID
	Name   string
}

// CreateLabelRequest contains parameters for creating a label.
// Name is optional; when empty the naming engine picks a numbered default.
// Thumbnail is an optional pre-rendered image for the medium variant.
type CreateLabelRequest struct {
	UserID      uuid.UUID
	ProjectID   uuid.UUID
	Name        string
	Description string
	WidthMM     float64
	HeightMM    float64
	Content     json.RawMessage
	Thumbnail   []byte
}

// DuplicateLabelRequest contains parameters for duplicating a label.
type DuplicateLabelRequest struct {
	UserID  uuid.UUID
	LabelID uuid.UUID
}

// LabelTemplate carries the shared payload for bulk-created labels.
type LabelTemplate struct {
	WidthMM  float64
	HeightMM float64
	Content  json.RawMessage
}

// CreateBulkRequest creates Count labels sharing one template, each with an
// engine-generated name derived from BaseName.
type CreateBulkRequest struct {
	UserID    uuid.UUID
	ProjectID uuid.UUID
	Count     int
	BaseName  string
	Template  LabelTemplate
}

// BulkItem is one per-item payload for CreateBulkUnique.
type BulkItem struct {
	WidthMM  float64
	HeightMM float64
	Content  json.RawMessage
}

// CreateBulkUniqueRequest creates one label per item, each with its own
// payload; only the names are engine-generated.
type CreateBulkUniqueRequest struct {
	UserID    uuid.UUID
	ProjectID uuid.UUID
	BaseName  string
	Items     []BulkItem
}

// BulkResult reports the labels actually created by a bulk operation.
// Bulk creation is not atomic: on partial failure Created reflects how many
// inserts succeeded before the error.
type BulkResult struct {
	Labels  []*Label
	Created int
}

// LabelPatch describes the mutable fields of a label. Nil fields are left
// unchanged.
type LabelPatch struct {
	Name         *string
	Description  *string
	WidthMM      *float64
	HeightMM     *float64
	Content      json.RawMessage
	ThumbnailKey *string
}

// UpdateLabelRequest contains parameters for updating a label. When
// ExpectedVersion is set and does not match the stored version the update
// fails with *VersionConflictError. Thumbnail, when present, replaces the
// stored thumbnail artifacts (old artifacts are deleted first).
type UpdateLabelRequest struct {
	UserID          uuid.UUID
	LabelID         uuid.UUID
	ExpectedVersion *int
	Patch           LabelPatch
	Thumbnail       []byte
}

// DeleteLabelRequest contains parameters for deleting a label.
type DeleteLabelRequest struct {
	UserID  uuid.UUID
	LabelID uuid.UUID
}

// GetLabelRequest contains parameters for fetching a single label.
type GetLabelRequest struct {
	UserID  uuid.UUID
	LabelID uuid.UUID
}

// ListLabelsRequest contains parameters for listing a project's labels.
type ListLabelsRequest struct {
	UserID    uuid.UUID
	ProjectID uuid.UUID
}
