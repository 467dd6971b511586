package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/printforge/labelcore/pkg/labelcore"
)

// LabelHandler handles HTTP requests for individual labels.
type LabelHandler struct {
	service labelcore.Service
}

// NewLabelHandler creates a new label handler.
func NewLabelHandler(service labelcore.Service) *LabelHandler {
	return &LabelHandler{service: service}
}

// Routes returns the routes for labels.
func (h *LabelHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{id}", h.GetLabel)
	r.Patch("/{id}", h.UpdateLabel)
	r.Delete("/{id}", h.DeleteLabel)
	r.Post("/{id}/duplicate", h.DuplicateLabel)

	return r
}

// LabelResponse is the response body for a label.
type LabelResponse struct {
	ID           string          `json:"id"`
	ProjectID    string          `json:"project_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	WidthMM      float64         `json:"width_mm"`
	HeightMM     float64         `json:"height_mm"`
	Content      json.RawMessage `json:"content"`
	ThumbnailURL string          `json:"thumbnail_url,omitempty"`
	Version      int             `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func toLabelResponse(label *labelcore.Label) LabelResponse {
	return LabelResponse{
		ID:           label.ID.String(),
		ProjectID:    label.ProjectID.String(),
		Name:         label.Name,
		Description:  label.Description,
		WidthMM:      label.WidthMM,
		HeightMM:     label.HeightMM,
		Content:      label.Content,
		ThumbnailURL: label.ThumbnailURL,
		Version:      label.Version,
		CreatedAt:    label.CreatedAt,
		UpdatedAt:    label.UpdatedAt,
	}
}

func toLabelResponses(labels []*labelcore.Label) []LabelResponse {
	resp := make([]LabelResponse, len(labels))
	for i, label := range labels {
		resp[i] = toLabelResponse(label)
	}
	return resp
}

// GetLabel retrieves a label by ID.
func (h *LabelHandler) GetLabel(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r)
	if err != nil {
		http.Error(w, "invalid token subject", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid label ID", http.StatusBadRequest)
		return
	}

	label, err := h.service.GetLabel(r.Context(), labelcore.GetLabelRequest{
		UserID:  userID,
		LabelID: id,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toLabelResponse(label))
}

// UpdateLabelRequest is the request body for updating a label. Omitted
// fields are left unchanged. Thumbnail is base64-encoded image bytes.
type UpdateLabelRequest struct {
	ExpectedVersion *int            `json:"expected_version,omitempty"`
	Name            *string         `json:"name,omitempty"`
	Description     *string         `json:"description,omitempty"`
	WidthMM         *float64        `json:"width_mm,omitempty"`
	HeightMM        *float64        `json:"height_mm,omitempty"`
	Content         json.RawMessage `json:"content,omitempty"`
	Thumbnail       string          `json:"thumbnail,omitempty"`
}

// UpdateLabel applies a partial update guarded by the expected version.
func (h *LabelHandler) UpdateLabel(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r)
	if err != nil {
		http.Error(w, "invalid token subject", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid label ID", http.StatusBadRequest)
		return
	}

	var req UpdateLabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	thumbnail, err := decodeThumbnail(req.Thumbnail)
	if err != nil {
		http.Error(w, "invalid thumbnail encoding", http.StatusBadRequest)
		return
	}

	label, err := h.service.UpdateLabel(r.Context(), labelcore.UpdateLabelRequest{
		UserID:          userID,
		LabelID:         id,
		ExpectedVersion: req.ExpectedVersion,
		Patch: labelcore.LabelPatch{
			Name:        req.Name,
			Description: req.Description,
			WidthMM:     req.WidthMM,
			HeightMM:    req.HeightMM,
			Content:     req.Content,
		},
		Thumbnail: thumbnail,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toLabelResponse(label))
}

// DeleteLabel deletes a label and its thumbnail artifacts.
func (h *LabelHandler) DeleteLabel(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r)
	if err != nil {
		http.Error(w, "invalid token subject", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid label ID", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteLabel(r.Context(), labelcore.DeleteLabelRequest{
		UserID:  userID,
		LabelID: id,
	}); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DuplicateLabel creates a copy of a label with a derived name.
func (h *LabelHandler) DuplicateLabel(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r)
	if err != nil {
		http.Error(w, "invalid token subject", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid label ID", http.StatusBadRequest)
		return
	}

	label, err := h.service.DuplicateLabel(r.Context(), labelcore.DuplicateLabelRequest{
		UserID:  userID,
		LabelID: id,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toLabelResponse(label))
}

func decodeThumbnail(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(encoded)
}
