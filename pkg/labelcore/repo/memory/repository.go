// Package memory provides an in-memory Repository for tests and for
// running the service without a database. It mirrors the postgres
// repository's semantics: per-project name uniqueness and conditional
// version updates are enforced under one mutex.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/printforge/labelcore/pkg/labelcore"
)

// Repository implements labelcore.Repository and labelcore.Authorizer
// using in-memory maps.
type Repository struct {
	mu              sync.RWMutex
	projects        map[uuid.UUID]*labelcore.Project
	labels          map[uuid.UUID]*labelcore.Label
	labelsByProject map[uuid.UUID][]uuid.UUID
}

// New creates a new in-memory repository.
func New() *Repository {
	return &Repository{
		projects:        make(map[uuid.UUID]*labelcore.Project),
		labels:          make(map[uuid.UUID]*labelcore.Label),
		labelsByProject: make(map[uuid.UUID][]uuid.UUID),
	}
}

// Project operations

func (r *Repository) CreateProject(ctx context.Context, project *labelcore.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	projectCopy := *project
	r.projects[project.ID] = &projectCopy
	return nil
}

func (r *Repository) GetProject(ctx context.Context, id uuid.UUID) (*labelcore.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	project, exists := r.projects[id]
	if !exists {
		return nil, labelcore.ErrProjectNotFound
	}
	projectCopy := *project
	return &projectCopy, nil
}

func (r *Repository) ListProjects(ctx context.Context, ownerID uuid.UUID) ([]*labelcore.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*labelcore.Project
	for _, project := range r.projects {
		if project.OwnerID == ownerID {
			projectCopy := *project
			result = append(result, &projectCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Label operations

func (r *Repository) CreateLabel(ctx context.Context, label *labelcore.Label) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.projects[label.ProjectID]; !exists {
		return labelcore.ErrProjectNotFound
	}
	for _, id := range r.labelsByProject[label.ProjectID] {
		if r.labels[id].Name == label.Name {
			return labelcore.ErrNameTaken
		}
	}

	labelCopy := cloneLabel(label)
	r.labels[label.ID] = labelCopy
	r.labelsByProject[label.ProjectID] = append(r.labelsByProject[label.ProjectID], label.ID)
	return nil
}

func (r *Repository) GetLabel(ctx context.Context, id uuid.UUID) (*labelcore.Label, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	label, exists := r.labels[id]
	if !exists {
		return nil, labelcore.ErrLabelNotFound
	}
	return cloneLabel(label), nil
}

func (r *Repository) ListLabels(ctx context.Context, projectID uuid.UUID) ([]*labelcore.Label, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.labelsByProject[projectID]
	result := make([]*labelcore.Label, 0, len(ids))
	for _, id := range ids {
		result = append(result, cloneLabel(r.labels[id]))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *Repository) DeleteLabel(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	label, exists := r.labels[id]
	if !exists {
		return labelcore.ErrLabelNotFound
	}
	delete(r.labels, id)

	siblings := r.labelsByProject[label.ProjectID]
	for i, sid := range siblings {
		if sid == id {
			r.labelsByProject[label.ProjectID] = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	return nil
}

func (r *Repository) SiblingNames(ctx context.Context, projectID uuid.UUID) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.labelsByProject[projectID]
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, r.labels[id].Name)
	}
	sort.Strings(names)
	return names, nil
}

func (r *Repository) UpdateLabelIfVersion(ctx context.Context, id uuid.UUID, expected int, patch labelcore.LabelPatch) (*labelcore.Label, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	label, exists := r.labels[id]
	if !exists {
		return nil, labelcore.ErrLabelNotFound
	}
	if label.Version != expected {
		return nil, &labelcore.VersionConflictError{
			LabelID:  id,
			Expected: expected,
			Current:  label.Version,
		}
	}

	if patch.Name != nil && *patch.Name != label.Name {
		for _, sid := range r.labelsByProject[label.ProjectID] {
			if sid != id && r.labels[sid].Name == *patch.Name {
				return nil, labelcore.ErrNameTaken
			}
		}
		label.Name = *patch.Name
	}
	if patch.Description != nil {
		label.Description = *patch.Description
	}
	if patch.WidthMM != nil {
		label.WidthMM = *patch.WidthMM
	}
	if patch.HeightMM != nil {
		label.HeightMM = *patch.HeightMM
	}
	if len(patch.Content) > 0 {
		label.Content = append(label.Content[:0:0], patch.Content...)
	}
	if patch.ThumbnailKey != nil {
		key := *patch.ThumbnailKey
		label.ThumbnailKey = &key
	}

	label.Version++
	label.UpdatedAt = time.Now().UTC()
	return cloneLabel(label), nil
}

// Authorizer

func (r *Repository) OwnsProject(ctx context.Context, userID, projectID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	project, exists := r.projects[projectID]
	return exists && project.OwnerID == userID, nil
}

func (r *Repository) OwnsLabel(ctx context.Context, userID, labelID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	label, exists := r.labels[labelID]
	if !exists {
		return false, nil
	}
	project, exists := r.projects[label.ProjectID]
	return exists && project.OwnerID == userID, nil
}

// cloneLabel deep-copies a label so callers never share the stored slices.
func cloneLabel(label *labelcore.Label) *labelcore.Label {
	labelCopy := *label
	labelCopy.Content = append(label.Content[:0:0], label.Content...)
	if label.ThumbnailKey != nil {
		key := *label.ThumbnailKey
		labelCopy.ThumbnailKey = &key
	}
	return &labelCopy
}
