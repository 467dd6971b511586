package labelcore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/printforge/labelcore/pkg/labelcore/naming"
)

// service implements the Service interface.
type service struct {
	repo        Repository
	blobStore   BlobStore
	cache       Cache
	authz       Authorizer
	events      EventSink
	logger      *slog.Logger
	signTTL     time.Duration
	assets      *AssetCoordinator
	invalidator *CacheInvalidator
}

// Option represents a functional option for configuring the service.
type Option func(*service)

// WithRepository sets the persistence collaborator (required).
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repo = repo
	}
}

// WithBlobStore sets the thumbnail storage backend. Defaults to the
// null-object store, under which every thumbnail operation degrades.
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobStore = store
	}
}

// WithCache sets the cache backend. Defaults to the no-op cache.
func WithCache(cache Cache) Option {
	return func(s *service) {
		s.cache = cache
	}
}

// WithAuthorizer sets the ownership collaborator. When unset, a repository
// that implements Authorizer is used directly.
func WithAuthorizer(authz Authorizer) Option {
	return func(s *service) {
		s.authz = authz
	}
}

// WithEventSink sets the lifecycle event sink.
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.events = sink
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithSignTTL sets the lifetime of signed thumbnail URLs.
func WithSignTTL(ttl time.Duration) Option {
	return func(s *service) {
		s.signTTL = ttl
	}
}

// New creates a new service instance with the given options.
func New(options ...Option) (Service, error) {
	s := &service{
		blobStore: NewNoopBlobStore(),
		cache:     NewNoopCache(),
		events:    NewNoopEventSink(),
		signTTL:   DefaultSignTTL,
	}

	for _, option := range options {
		option(s)
	}

	if s.repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.authz == nil {
		authz, ok := s.repo.(Authorizer)
		if !ok {
			return nil, fmt.Errorf("authorizer is required")
		}
		s.authz = authz
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.assets = NewAssetCoordinator(s.blobStore, s.signTTL, s.logger)
	s.invalidator = NewCacheInvalidator(s.cache, s.logger)

	return s, nil
}

// Project operations

func (s *service) CreateProject(ctx context.Context, req CreateProjectRequest) (*Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if len(name) > MaxNameLength {
		return nil, &ValidationError{Field: "name", Reason: "too long"}
	}

	now := time.Now().UTC()
	project := &Project{
		ID:        uuid.New(),
		OwnerID:   req.UserID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	s.invalidator.ProjectChanged(ctx, project.ID, project.OwnerID)
	return project, nil
}

func (s *service) ListProjects(ctx context.Context, userID uuid.UUID) ([]*Project, error) {
	key := UserProjectsPrefix(userID)
	if data, err := s.cache.Get(ctx, key); err == nil {
		var projects []*Project
		if err := json.Unmarshal(data, &projects); err == nil {
			return projects, nil
		}
	}

	projects, err := s.repo.ListProjects(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	s.cachePut(ctx, key, projects, TTLListing)
	return projects, nil
}

// Label lifecycle operations

func (s *service) CreateLabel(ctx context.Context, req CreateLabelRequest) (*Label, error) {
	if err := validateDimensions(req.WidthMM, req.HeightMM); err != nil {
		return nil, err
	}
	if err := validateOptionalName(req.Name); err != nil {
		return nil, err
	}
	if err := s.authorizeProject(ctx, req.UserID, req.ProjectID); err != nil {
		return nil, err
	}

	siblings, err := s.repo.SiblingNames(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load sibling names: %w", err)
	}
	name := naming.UniqueName(siblings, naming.DefaultBase)
	if requested := strings.TrimSpace(req.Name); requested != "" {
		name = naming.EnsureUnique(siblings, requested)
	}

	content := req.Content
	if len(content) == 0 {
		content = DefaultCanvas(req.WidthMM, req.HeightMM)
	}

	now := time.Now().UTC()
	label := &Label{
		ID:          uuid.New(),
		ProjectID:   req.ProjectID,
		Name:        name,
		Description: req.Description,
		WidthMM:     req.WidthMM,
		HeightMM:    req.HeightMM,
		Content:     content,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Upload before the insert so a degraded store leaves ThumbnailKey nil
	// on the persisted record rather than pointing at missing bytes.
	if len(req.Thumbnail) > 0 {
		url, key := s.assets.UploadThumbnail(ctx, label.ID, req.Thumbnail, SizeMedium)
		if key != "" {
			label.ThumbnailKey = &key
			label.ThumbnailURL = url
		}
	}

	if err := s.repo.CreateLabel(ctx, label); err != nil {
		if errors.Is(err, ErrNameTaken) {
			return nil, err
		}
		return nil, &LabelError{LabelID: label.ID, Op: "create", Err: err}
	}

	s.invalidator.LabelChanged(ctx, label.ID, label.ProjectID, req.UserID)
	s.fireEvent(ctx, "created", func() error { return s.events.LabelCreated(ctx, label) })
	return label, nil
}

func (s *service) DuplicateLabel(ctx context.Context, req DuplicateLabelRequest) (*Label, error) {
	if err := s.authorizeLabel(ctx, req.UserID, req.LabelID); err != nil {
		return nil, err
	}

	src, err := s.repo.GetLabel(ctx, req.LabelID)
	if err != nil {
		return nil, err
	}

	siblings, err := s.repo.SiblingNames(ctx, src.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load sibling names: %w", err)
	}

	now := time.Now().UTC()
	dup := &Label{
		ID:          uuid.New(),
		ProjectID:   src.ProjectID,
		Name:        naming.CopyName(src.Name, siblings),
		Description: src.Description,
		WidthMM:     src.WidthMM,
		HeightMM:    src.HeightMM,
		Content:     append(json.RawMessage(nil), src.Content...),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Fresh artifacts, never a shared reference to the source's objects.
	if src.ThumbnailKey != nil {
		if key := s.assets.CloneThumbnails(ctx, src.ID, dup.ID); key != "" {
			dup.ThumbnailKey = &key
		}
	}

	if err := s.repo.CreateLabel(ctx, dup); err != nil {
		if errors.Is(err, ErrNameTaken) {
			return nil, err
		}
		return nil, &LabelError{LabelID: dup.ID, Op: "duplicate", Err: err}
	}

	s.invalidator.LabelChanged(ctx, dup.ID, dup.ProjectID, req.UserID)
	s.fireEvent(ctx, "created", func() error { return s.events.LabelCreated(ctx, dup) })
	s.attachThumbnailURL(ctx, dup)
	return dup, nil
}

func (s *service) CreateBulk(ctx context.Context, req CreateBulkRequest) (*BulkResult, error) {
	if err := validateCount(req.Count); err != nil {
		return nil, err
	}
	if err := validateDimensions(req.Template.WidthMM, req.Template.HeightMM); err != nil {
		return nil, err
	}
	if err := s.authorizeProject(ctx, req.UserID, req.ProjectID); err != nil {
		return nil, err
	}

	items := make([]BulkItem, req.Count)
	for i := range items {
		items[i] = BulkItem{
			WidthMM:  req.Template.WidthMM,
			HeightMM: req.Template.HeightMM,
			Content:  req.Template.Content,
		}
	}
	return s.createBulkItems(ctx, req.UserID, req.ProjectID, req.BaseName, items)
}

func (s *service) CreateBulkUnique(ctx context.Context, req CreateBulkUniqueRequest) (*BulkResult, error) {
	if err := validateCount(len(req.Items)); err != nil {
		return nil, err
	}
	for _, item := range req.Items {
		if err := validateDimensions(item.WidthMM, item.HeightMM); err != nil {
			return nil, err
		}
	}
	if err := s.authorizeProject(ctx, req.UserID, req.ProjectID); err != nil {
		return nil, err
	}
	return s.createBulkItems(ctx, req.UserID, req.ProjectID, req.BaseName, req.Items)
}

// createBulkItems inserts one label per item, re-reading the sibling-name
// snapshot before each insert so every name is unique at the moment of its
// insert. Not atomic: on failure the result reports what was created before
// it. Two concurrent bulk calls on one project can still race on names; the
// repository's uniqueness constraint is the backstop.
func (s *service) createBulkItems(ctx context.Context, userID, projectID uuid.UUID, baseName string, items []BulkItem) (*BulkResult, error) {
	result := &BulkResult{}
	defer func() {
		if result.Created > 0 {
			s.invalidator.ProjectLabelsChanged(ctx, projectID, userID)
		}
	}()

	for i, item := range items {
		siblings, err := s.repo.SiblingNames(ctx, projectID)
		if err != nil {
			return result, fmt.Errorf("load sibling names for item %d: %w", i, err)
		}

		content := item.Content
		if len(content) == 0 {
			content = DefaultCanvas(item.WidthMM, item.HeightMM)
		}

		now := time.Now().UTC()
		label := &Label{
			ID:        uuid.New(),
			ProjectID: projectID,
			Name:      naming.UniqueName(siblings, baseName),
			WidthMM:   item.WidthMM,
			HeightMM:  item.HeightMM,
			Content:   content,
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.CreateLabel(ctx, label); err != nil {
			return result, &LabelError{LabelID: label.ID, Op: "bulk_create", Err: err}
		}

		result.Labels = append(result.Labels, label)
		result.Created++
		s.fireEvent(ctx, "created", func() error { return s.events.LabelCreated(ctx, label) })
	}

	return result, nil
}

func (s *service) UpdateLabel(ctx context.Context, req UpdateLabelRequest) (*Label, error) {
	if err := validatePatch(req.Patch); err != nil {
		return nil, err
	}
	if err := s.authorizeLabel(ctx, req.UserID, req.LabelID); err != nil {
		return nil, err
	}

	current, err := s.repo.GetLabel(ctx, req.LabelID)
	if err != nil {
		return nil, err
	}

	// Fail stale updates before mutating any artifact. The conditional
	// update below remains the authoritative check; this only prevents a
	// doomed request from overwriting the stored thumbnail first.
	if req.ExpectedVersion != nil && *req.ExpectedVersion != current.Version {
		return nil, &VersionConflictError{
			LabelID:  req.LabelID,
			Expected: *req.ExpectedVersion,
			Current:  current.Version,
		}
	}

	if req.Patch.Name != nil && *req.Patch.Name != current.Name {
		siblings, err := s.repo.SiblingNames(ctx, current.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("load sibling names: %w", err)
		}
		for _, sibling := range siblings {
			if sibling == *req.Patch.Name {
				return nil, ErrNameTaken
			}
		}
	}

	patch := req.Patch
	if len(req.Thumbnail) > 0 {
		// Cleanup-before-write: UploadThumbnail deletes the old artifact at
		// the deterministic key before storing the new bytes.
		if _, key := s.assets.UploadThumbnail(ctx, current.ID, req.Thumbnail, SizeMedium); key != "" {
			patch.ThumbnailKey = &key
		}
	}

	expected := current.Version
	if req.ExpectedVersion != nil {
		expected = *req.ExpectedVersion
	}

	updated, err := s.repo.UpdateLabelIfVersion(ctx, req.LabelID, expected, patch)
	if err != nil {
		var conflict *VersionConflictError
		if errors.As(err, &conflict) || errors.Is(err, ErrLabelNotFound) || errors.Is(err, ErrNameTaken) {
			return nil, err
		}
		return nil, &LabelError{LabelID: req.LabelID, Op: "update", Err: err}
	}

	s.invalidator.LabelChanged(ctx, updated.ID, updated.ProjectID, req.UserID)
	s.fireEvent(ctx, "updated", func() error { return s.events.LabelUpdated(ctx, updated) })
	s.attachThumbnailURL(ctx, updated)
	return updated, nil
}

func (s *service) DeleteLabel(ctx context.Context, req DeleteLabelRequest) error {
	if err := s.authorizeLabel(ctx, req.UserID, req.LabelID); err != nil {
		return err
	}

	label, err := s.repo.GetLabel(ctx, req.LabelID)
	if err != nil {
		return err
	}

	s.assets.DeleteAll(ctx, req.LabelID)

	if err := s.repo.DeleteLabel(ctx, req.LabelID); err != nil {
		if errors.Is(err, ErrLabelNotFound) {
			return err
		}
		return &LabelError{LabelID: req.LabelID, Op: "delete", Err: err}
	}

	s.invalidator.LabelChanged(ctx, req.LabelID, label.ProjectID, req.UserID)
	s.fireEvent(ctx, "deleted", func() error { return s.events.LabelDeleted(ctx, req.LabelID) })
	return nil
}

// Read path

func (s *service) GetLabel(ctx context.Context, req GetLabelRequest) (*Label, error) {
	if err := s.authorizeLabel(ctx, req.UserID, req.LabelID); err != nil {
		return nil, err
	}

	key := LabelCacheKey(req.LabelID)
	if data, err := s.cache.Get(ctx, key); err == nil {
		var label Label
		if err := json.Unmarshal(data, &label); err == nil {
			s.attachThumbnailURL(ctx, &label)
			return &label, nil
		}
	}

	label, err := s.repo.GetLabel(ctx, req.LabelID)
	if err != nil {
		return nil, err
	}
	s.cachePut(ctx, key, label, TTLEntity)
	s.attachThumbnailURL(ctx, label)
	return label, nil
}

func (s *service) ListLabels(ctx context.Context, req ListLabelsRequest) ([]*Label, error) {
	if err := s.authorizeProject(ctx, req.UserID, req.ProjectID); err != nil {
		return nil, err
	}

	key := ProjectLabelsPrefix(req.ProjectID)
	if data, err := s.cache.Get(ctx, key); err == nil {
		var labels []*Label
		if err := json.Unmarshal(data, &labels); err == nil {
			for _, label := range labels {
				s.attachThumbnailURL(ctx, label)
			}
			return labels, nil
		}
	}

	labels, err := s.repo.ListLabels(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	s.cachePut(ctx, key, labels, TTLListing)
	for _, label := range labels {
		s.attachThumbnailURL(ctx, label)
	}
	return labels, nil
}

// Helpers

func (s *service) authorizeProject(ctx context.Context, userID, projectID uuid.UUID) error {
	ok, err := s.authz.OwnsProject(ctx, userID, projectID)
	if err != nil {
		return fmt.Errorf("project ownership check: %w", err)
	}
	if !ok {
		return ErrProjectNotFound
	}
	return nil
}

func (s *service) authorizeLabel(ctx context.Context, userID, labelID uuid.UUID) error {
	ok, err := s.authz.OwnsLabel(ctx, userID, labelID)
	if err != nil {
		return fmt.Errorf("label ownership check: %w", err)
	}
	if !ok {
		return ErrLabelNotFound
	}
	return nil
}

// attachThumbnailURL signs a fresh access URL for the stored artifact.
// Signed URLs are never cached or persisted; a degraded store leaves the
// URL empty, which callers render as a placeholder.
func (s *service) attachThumbnailURL(ctx context.Context, label *Label) {
	if label.ThumbnailKey == nil {
		return
	}
	label.ThumbnailURL = s.assets.RefreshURL(ctx, label.ID, SizeMedium)
}

// cachePut marshals and stores v; cache failures only cost the next read a
// miss and are logged at debug.
func (s *service) cachePut(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, ttl); err != nil {
		s.logger.Debug("cache set failed", "key", key, "error", err)
	}
}

func (s *service) fireEvent(ctx context.Context, kind string, fire func() error) {
	if err := fire(); err != nil {
		s.logger.Warn("event sink failed", "event", kind, "error", err)
	}
}

func validateDimensions(widthMM, heightMM float64) error {
	if widthMM <= 0 || widthMM > MaxDimensionMM {
		return &ValidationError{Field: "width_mm", Reason: fmt.Sprintf("must be in (0, %d]", MaxDimensionMM)}
	}
	if heightMM <= 0 || heightMM > MaxDimensionMM {
		return &ValidationError{Field: "height_mm", Reason: fmt.Sprintf("must be in (0, %d]", MaxDimensionMM)}
	}
	return nil
}

func validateOptionalName(name string) error {
	if name == "" {
		return nil
	}
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be blank"}
	}
	if len(name) > MaxNameLength {
		return &ValidationError{Field: "name", Reason: "too long"}
	}
	return nil
}

func validateCount(count int) error {
	if count < 1 || count > MaxBulkCount {
		return &ValidationError{Field: "count", Reason: fmt.Sprintf("must be in [1, %d]", MaxBulkCount)}
	}
	return nil
}

func validatePatch(patch LabelPatch) error {
	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return &ValidationError{Field: "name", Reason: "must not be blank"}
		}
		if len(*patch.Name) > MaxNameLength {
			return &ValidationError{Field: "name", Reason: "too long"}
		}
	}
	if patch.WidthMM != nil && (*patch.WidthMM <= 0 || *patch.WidthMM > MaxDimensionMM) {
		return &ValidationError{Field: "width_mm", Reason: fmt.Sprintf("must be in (0, %d]", MaxDimensionMM)}
	}
	if patch.HeightMM != nil && (*patch.HeightMM <= 0 || *patch.HeightMM > MaxDimensionMM) {
		return &ValidationError{Field: "height_mm", Reason: fmt.Sprintf("must be in (0, %d]", MaxDimensionMM)}
	}
	return nil
}
