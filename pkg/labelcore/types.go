package labelcore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ThumbnailSize identifies a rendered thumbnail variant of a label.
type ThumbnailSize string

// Thumbnail size constants (typed).
const (
	SizeSmall  ThumbnailSize = "sm"
	SizeMedium ThumbnailSize = "md"
	SizeLarge  ThumbnailSize = "lg"
)

// ThumbnailSizes returns all supported thumbnail variants.
func ThumbnailSizes() []ThumbnailSize {
	return []ThumbnailSize{SizeSmall, SizeMedium, SizeLarge}
}

// Validation bounds for label fields.
const (
	MaxNameLength  = 200
	MaxDimensionMM = 10000
	MaxBulkCount   = 100
)

// Label represents a single print/graphic document belonging to a project.
//
// Name is unique within the owning project. Version is the optimistic
// concurrency token: it starts at 1 and increases by exactly 1 on every
// successful mutation. ThumbnailKey, when set, is the deterministic blob
// storage key of the medium thumbnail; the displayable URL is always
// recomputed from it, never persisted.
type Label struct {
	ID           uuid.UUID       `json:"id"`
	ProjectID    uuid.UUID       `json:"project_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	WidthMM      float64         `json:"width_mm"`
	HeightMM     float64         `json:"height_mm"`
	Content      json.RawMessage `json:"content"`
	ThumbnailKey *string         `json:"thumbnail_key,omitempty"`
	Version      int             `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	// Computed field (not persisted - populated by the service layer)
	ThumbnailURL string `json:"thumbnail_url,omitempty" db:"-"`
}

// Project is the ownership and naming-uniqueness scope containing labels.
type Project struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultCanvas returns the empty canvas descriptor used when a label is
// created without content. The payload itself is opaque to this service.
func DefaultCanvas(widthMM, heightMM float64) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"type":"canvas","unit":"mm","width":%g,"height":%g,"objects":[]}`,
		widthMM, heightMM))
}
