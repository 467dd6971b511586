package labelcore_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printforge/labelcore/pkg/labelcore"
	cachemem "github.com/printforge/labelcore/pkg/labelcore/cache/memory"
	repomem "github.com/printforge/labelcore/pkg/labelcore/repo/memory"
	storagemem "github.com/printforge/labelcore/pkg/labelcore/storage/memory"
)

func newTestService(t *testing.T, options ...labelcore.Option) (labelcore.Service, *repomem.Repository) {
	t.Helper()
	repo := repomem.New()
	svc, err := labelcore.New(append([]labelcore.Option{labelcore.WithRepository(repo)}, options...)...)
	require.NoError(t, err)
	return svc, repo
}

func setupProject(t *testing.T, svc labelcore.Service) (userID, projectID uuid.UUID) {
	t.Helper()
	userID = uuid.New()
	project, err := svc.CreateProject(context.Background(), labelcore.CreateProjectRequest{
		UserID: userID,
		Name:   "Stickers",
	})
	require.NoError(t, err)
	return userID, project.ID
}

func TestCreateLabel(t *testing.T) {
	ctx := context.Background()

	t.Run("default names form a sequence", func(t *testing.T) {
		svc, _ := newTestService(t)
		userID, projectID := setupProject(t, svc)

		for _, want := range []string{"New Label 1", "New Label 2", "New Label 3"} {
			label, err := svc.CreateLabel(ctx, labelcore.CreateLabelRequest{
				UserID:    userID,
				ProjectID: projectID,
				WidthMM:   50,
				HeightMM:  30,
			})
			require.NoError(t, err)
			assert.Equal(t, want, label.Name)
			assert.Equal(t, 1, label.Version)
		}
	})

	t.Run("requested name is honored exactly when free", func(t *testing.T) {
		svc, _ := newTestService(t)
		userID, projectID := setupProject(t, svc)

		label, err := svc.CreateLabel(ctx, labelcore.CreateLabelRequest{
			UserID:    userID,
			ProjectID: projectID,
			Name:      "Shipping Box",
			WidthMM:   100,
			HeightMM:  60,
		})
		require.NoError(t, err)
		assert.Equal(t, "Shipping Box", label.Name)

		// Same requested name again falls back to the numbered form.
		label2, err := svc.CreateLabel(ctx, labelcore.CreateLabelRequest{
			UserID:    userID,
			ProjectID: projectID,
			Name:      "Shipping Box",
			WidthMM:   100,
			HeightMM:  60,
		})
		require.NoError(t, err)
		assert.Equal(t, "Shipping Box 1", label2.Name)
	})

	t.Run("empty content gets a default canvas", func(t *testing.T) {
		svc, _ := newTestService(t)
		userID, projectID := setupProject(t, svc)

		label, err := svc.CreateLabel(ctx, labelcore.CreateLabelRequest{
			UserID:    userID,
			ProjectID: projectID,
			WidthMM:   62,
			HeightMM:  29,
		})
		require.NoError(t, err)

		var canvas map[string]any
		require.NoError(t, json.Unmarshal(label.Content, &canvas))
		assert.Equal(t, "canvas", canvas["type"])
		assert.Equal(t, 62.0, canvas["width"])
		assert.Equal(t, 29.0, canvas["height"])
	})

	t.Run("invalid dimensions are rejected", func(t *testing.T) {
		svc, _ := newTestService(t)
		userID, projectID := setupProject(t, svc)

		for _, tt := range []struct {
			name   string
			width  float64
			height float64
		}{
			{"zero width", 0, 30},
			{"negative height", 50, -1},
			{"width too large", 10001, 30},
		} {
			t.Run(tt.name, func(t *testing.T) {
				_, err := svc.CreateLabel(ctx, labelcore.CreateLabelRequest{
					UserID:    userID,
					ProjectID: projectID,
					WidthMM:   tt.width,
					HeightMM:  tt.height,
				})
				var verr *labelcore.ValidationError
				require.ErrorAs(t, err, &verr)
			})
		}
	})

	t.Run("foreign project reads as not found", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, projectID := setupProject(t, svc)

		_, err := svc.CreateLabel(ctx, labelcore.CreateLabelRequest{
			UserID:    uuid.New(),
			ProjectID: projectID,
			WidthMM:   50,
			HeightMM:  30,
		})
		assert.ErrorIs(t, err, labelcore.ErrProjectNotFound)
	})
}

func TestCreateLabel_Thumbnail(t *testing.T) {
	ctx := context.Background()

	t.Run("stored under the deterministic key", func(t *testing.T) {
		store := storagemem.New()
		svc, _ := newTestService(t, labelcore.WithBlobStore(store))
		userID, projectID := setupProject(t, svc)

		label, err := svc.CreateLabel(ctx, labelcore.CreateLabelRequest{
			UserID:    userID,
			ProjectID: projectID,
			WidthMM:   50,
			HeightMM:  30,
			Thumbnail: []byte("png-bytes"),
		})
		require.NoError(t, err)
		require.NotNil(t, label.ThumbnailKey)
		assert.Equal(t, labelcore.ThumbnailKey(label.ID, labelcore.SizeMedium), *label.ThumbnailKey)
		assert.NotEmpty(t, label.ThumbnailURL)

		rc, err := store.Download(ctx, *label.ThumbnailKey)
		require.NoError(t, err)
		rc.Close()
	})

	t.Run("degraded storage leaves the record thumbnail-less", func(t *testing.T) {
		// Default blob store is the null object: every operation degrades.
		svc, _ := newTestService(t)
		userID, projectID := setupProject(t, svc)

		label, err := svc.CreateLabel(ctx, labelcore.CreateLabelRequest{
			UserID:    userID,
			ProjectID: projectID,
			WidthMM:   50,
			HeightMM:  30,
			Thumbnail: []byte("png-bytes"),
		})
		require.NoError(t, err, "storage failures must never fail the create")
		assert.Nil(t, label.ThumbnailKey)
		assert.Empty(t, label.ThumbnailURL)
	})
}

func TestDuplicateLabel(t *testing.T) {
	ctx := context.Background()
	store := storagemem.New()
	svc, _ := newTestService(t, labelcore.WithBlobStore(store))
	userID, projectID := setupProject(t, svc)

	src, err := svc.CreateLabel(ctx, labelcore.CreateLabelRequest{
		UserID:    userID,
		ProjectID: projectID,
		Name:      "Jar Lid",
		WidthMM:   40,
		HeightMM:  40,
		Content:   json.RawMessage(`{"objects":["circle"]}`),
		Thumbnail: []byte("jar-lid-png"),
	})
	require.NoError(t, err)

	dup, err := svc.DuplicateLabel(ctx, labelcore.DuplicateLabelRequest{
		UserID:  userID,
		LabelID: src.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, "Jar Lid Copy", dup.Name)
	assert.NotEqual(t, src.ID, dup.ID)
	assert.Equal(t, 1, dup.Version)
	assert.JSONEq(t, string(src.Content), string(dup.Content))

	// The duplicate owns fresh artifacts under its own prefix.
	require.NotNil(t, dup.ThumbnailKey)
	assert.Equal(t, labelcore.ThumbnailKey(dup.ID, labelcore.SizeMedium), *dup.ThumbnailKey)
	assert.NotEqual(t, *src.ThumbnailKey, *dup.ThumbnailKey)

	// Repeated duplication keeps counting instead of stacking suffixes.
	dup2, err := svc.DuplicateLabel(ctx, labelcore.DuplicateLabelRequest{
		UserID:  userID,
		LabelID: dup.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Jar Lid Copy 2", dup2.Name)
}

func TestCreateBulk(t *testing.T) {
	ctx := context.Background()

	t.Run("names are unique and sequential", func(t *testing.T) {
		svc, _ := newTestService(t)
		userID, projectID := setupProject(t, svc)

		result, err := svc.CreateBulk(ctx, labelcore.CreateBulkRequest{
			UserID:    userID,
			ProjectID: projectID,
			Count:     5,
			BaseName:  "New Label",
			Template:  labelcore.LabelTemplate{WidthMM: 50, HeightMM: 30},
		})
		require.NoError(t, err)
		require.Equal(t, 5, result.Created)
		require.Len(t, result.Labels, 5)

		seen := make(map[string]bool)
		for i, label := range result.Labels {
			assert.Equal(t, fmt.Sprintf("New Label %d", i+1), label.Name)
			assert.False(t, seen[label.Name], "duplicate name %q", label.Name)
			seen[label.Name] = true
			assert.Equal(t, 1, label.Version)
		}
	})

	t.Run("count bounds", func(t *testing.T) {
		svc, _ := newTestService(t)
		userID, projectID := setupProject(t, svc)

		for _, count := range []int{0, -1, 101} {
			_, err := svc.CreateBulk(ctx, labelcore.CreateBulkRequest{
				UserID:    userID,
				ProjectID: projectID,
				Count:     count,
				Template:  labelcore.LabelTemplate{WidthMM: 50, HeightMM: 30},
			})
			var verr *labelcore.ValidationError
			require.ErrorAs(t, err, &verr, "count=%d", count)
		}
	})

	t.Run("partial failure reports what was created", func(t *testing.T) {
		repo := &failingRepo{Repository: repomem.New(), failAfter: 3}
		svc, err := labelcore.New(labelcore.WithRepository(repo))
		require.NoError(t, err)
		userID, projectID := setupProject(t, svc)

		result, err := svc.CreateBulk(ctx, labelcore.CreateBulkRequest{
			UserID:    userID,
			ProjectID: projectID,
			Count:     5,
			BaseName:  "Batch",
			Template:  labelcore.LabelTemplate{WidthMM: 50, HeightMM: 30},
		})
		require.Error(t, err)
		require.NotNil(t, result)
		assert.Equal(t, 3, result.Created)
		assert.Len(t, result.Labels, 3)
	})
}

func TestCreateBulkUnique(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	userID, projectID := setupProject(t, svc)

	result, err := svc.CreateBulkUnique(ctx, labelcore.CreateBulkUniqueRequest{
		UserID:    userID,
		ProjectID: projectID,
		BaseName:  "Variant",
		Items: []labelcore.BulkItem{
			{WidthMM: 50, HeightMM: 30, Content: json.RawMessage(`{"objects":["a"]}`)},
			{WidthMM: 70, HeightMM: 40, Content: json.RawMessage(`{"objects":["b"]}`)},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.Created)

	assert.Equal(t, "Variant 1", result.Labels[0].Name)
	assert.Equal(t, "Variant 2", result.Labels[1].Name)
	assert.Equal(t, 50.0, result.Labels[0].WidthMM)
	assert.Equal(t, 70.0, result.Labels[1].WidthMM)
	assert.JSONEq(t, `{"objects":["b"]}`, string(result.Labels[1].Content))
}

func TestUpdateLabel(t *testing.T) {
	ctx := context.Background()

	create := func(t *testing.T, svc labelcore.Service, userID, projectID uuid.UUID) *labelcore.Label {
		t.Helper()
		label, err := svc.CreateLabel(ctx, labelcore.CreateLabelRequest{
			UserID:    userID,
			ProjectID: projectID,
			Name:      "Original",
			WidthMM:   50,
			HeightMM:  30,
		})
		require.NoError(t, err)
		return label
	}

	t.Run("matching version applies and increments", func(t *testing.T) {
		svc, _ := newTestService(t)
		userID, projectID := setupProject(t, svc)
		label := create(t, svc, userID, projectID)

		name := "Renamed"
		expected := 1
		updated, err := svc.UpdateLabel(ctx, labelcore.UpdateLabelRequest{
			UserID:          userID,
			LabelID:         label.ID,
			ExpectedVersion: &expected,
			Patch:           labelcore.LabelPatch{Name: &name},
		})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.Name)
		assert.Equal(t, 2, updated.Version)
	})

	t.Run("stale version conflicts and leaves the record unchanged", func(t *testing.T) {
		svc, repo := newTestService(t)
		userID, projectID := setupProject(t, svc)
		label := create(t, svc, userID, projectID)

		// Two updates bring the stored version to 3.
		for range 2 {
			desc := "touched"
			_, err := svc.UpdateLabel(ctx, labelcore.UpdateLabelRequest{
				UserID:  userID,
				LabelID: label.ID,
				Patch:   labelcore.LabelPatch{Description: &desc},
			})
			require.NoError(t, err)
		}

		stale := 2
		name := "Should Not Apply"
		_, err := svc.UpdateLabel(ctx, labelcore.UpdateLabelRequest{
			UserID:          userID,
			LabelID:         label.ID,
			ExpectedVersion: &stale,
			Patch:           labelcore.LabelPatch{Name: &name},
		})

		var conflict *labelcore.VersionConflictError
		require.ErrorAs(t, err, &conflict)
		assert.ErrorIs(t, err, labelcore.ErrVersionConflict)
		assert.Equal(t, 2, conflict.Expected)
		assert.Equal(t, 3, conflict.Current)

		stored, err := repo.GetLabel(ctx, label.ID)
		require.NoError(t, err)
		assert.Equal(t, "Original", stored.Name)
		assert.Equal(t, 3, stored.Version)
	})

	t.Run("omitted expected version wins against the current state", func(t *testing.T) {
		svc, _ := newTestService(t)
		userID, projectID := setupProject(t, svc)
		label := create(t, svc, userID, projectID)

		desc := "unconditional"
		updated, err := svc.UpdateLabel(ctx, labelcore.UpdateLabelRequest{
			UserID:  userID,
			LabelID: label.ID,
			Patch:   labelcore.LabelPatch{Description: &desc},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, updated.Version)
		assert.Equal(t, "unconditional", updated.Description)
	})

	t.Run("rename onto a sibling is rejected", func(t *testing.T) {
		svc, _ := newTestService(t)
		userID, projectID := setupProject(t, svc)
		label := create(t, svc, userID, projectID)

		_, err := svc.CreateLabel(ctx, labelcore.CreateLabelRequest{
			UserID:    userID,
			ProjectID: projectID,
			Name:      "Sibling",
			WidthMM:   50,
			HeightMM:  30,
		})
		require.NoError(t, err)

		name := "Sibling"
		_, err = svc.UpdateLabel(ctx, labelcore.UpdateLabelRequest{
			UserID:  userID,
			LabelID: label.ID,
			Patch:   labelcore.LabelPatch{Name: &name},
		})
		assert.ErrorIs(t, err, labelcore.ErrNameTaken)
	})

	t.Run("foreign label reads as not found", func(t *testing.T) {
		svc, _ := newTestService(t)
		userID, projectID := setupProject(t, svc)
		label := create(t, svc, userID, projectID)

		desc := "nope"
		_, err := svc.UpdateLabel(ctx, labelcore.UpdateLabelRequest{
			UserID:  uuid.New(),
			LabelID: label.ID,
			Patch:   labelcore.LabelPatch{Description: &desc},
		})
		assert.ErrorIs(t, err, labelcore.ErrLabelNotFound)
	})
}

func TestDeleteLabel(t *testing.T) {
	ctx := context.Background()
	store := storagemem.New()
	svc, repo := newTestService(t, labelcore.WithBlobStore(store))
	userID, projectID := setupProject(t, svc)

	label, err := svc.CreateLabel(ctx, labelcore.CreateLabelRequest{
		UserID:    userID,
		ProjectID: projectID,
		WidthMM:   50,
		HeightMM:  30,
		Thumbnail: []byte("png-bytes"),
	})
	require.NoError(t, err)

	err = svc.DeleteLabel(ctx, labelcore.DeleteLabelRequest{UserID: userID, LabelID: label.ID})
	require.NoError(t, err)

	_, err = repo.GetLabel(ctx, label.ID)
	assert.ErrorIs(t, err, labelcore.ErrLabelNotFound)

	keys, err := store.List(ctx, labelcore.ThumbnailPrefix(label.ID))
	require.NoError(t, err)
	assert.Empty(t, keys, "artifacts must be removed with the label")
}

func TestGetLabel_CacheAside(t *testing.T) {
	ctx := context.Background()
	cache := cachemem.New()
	svc, _ := newTestService(t, labelcore.WithCache(cache))
	userID, projectID := setupProject(t, svc)

	label, err := svc.CreateLabel(ctx, labelcore.CreateLabelRequest{
		UserID:    userID,
		ProjectID: projectID,
		Name:      "Cached",
		WidthMM:   50,
		HeightMM:  30,
	})
	require.NoError(t, err)

	// First read populates the cache.
	got, err := svc.GetLabel(ctx, labelcore.GetLabelRequest{UserID: userID, LabelID: label.ID})
	require.NoError(t, err)
	assert.Equal(t, "Cached", got.Name)
	_, err = cache.Get(ctx, labelcore.LabelCacheKey(label.ID))
	require.NoError(t, err)

	// A mutation drops the entry; the next read sees the new state.
	name := "Refreshed"
	_, err = svc.UpdateLabel(ctx, labelcore.UpdateLabelRequest{
		UserID:  userID,
		LabelID: label.ID,
		Patch:   labelcore.LabelPatch{Name: &name},
	})
	require.NoError(t, err)

	_, err = cache.Get(ctx, labelcore.LabelCacheKey(label.ID))
	assert.ErrorIs(t, err, labelcore.ErrCacheMiss)

	got, err = svc.GetLabel(ctx, labelcore.GetLabelRequest{UserID: userID, LabelID: label.ID})
	require.NoError(t, err)
	assert.Equal(t, "Refreshed", got.Name)
	assert.Equal(t, 2, got.Version)
}

func TestListLabels_CacheAside(t *testing.T) {
	ctx := context.Background()
	cache := cachemem.New()
	svc, _ := newTestService(t, labelcore.WithCache(cache))
	userID, projectID := setupProject(t, svc)

	_, err := svc.CreateLabel(ctx, labelcore.CreateLabelRequest{
		UserID:    userID,
		ProjectID: projectID,
		WidthMM:   50,
		HeightMM:  30,
	})
	require.NoError(t, err)

	labels, err := svc.ListLabels(ctx, labelcore.ListLabelsRequest{UserID: userID, ProjectID: projectID})
	require.NoError(t, err)
	require.Len(t, labels, 1)

	// Creating another label invalidates the listing.
	_, err = svc.CreateLabel(ctx, labelcore.CreateLabelRequest{
		UserID:    userID,
		ProjectID: projectID,
		WidthMM:   50,
		HeightMM:  30,
	})
	require.NoError(t, err)

	labels, err = svc.ListLabels(ctx, labelcore.ListLabelsRequest{UserID: userID, ProjectID: projectID})
	require.NoError(t, err)
	assert.Len(t, labels, 2)
}

// failingRepo fails every CreateLabel after the first failAfter successes.
type failingRepo struct {
	*repomem.Repository
	failAfter int
	created   int
}

func (r *failingRepo) CreateLabel(ctx context.Context, label *labelcore.Label) error {
	if r.created >= r.failAfter {
		return errors.New("insert failed")
	}
	if err := r.Repository.CreateLabel(ctx, label); err != nil {
		return err
	}
	r.created++
	return nil
}
