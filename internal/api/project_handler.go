package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/printforge/labelcore/pkg/labelcore"
)

// ProjectHandler handles HTTP requests for projects and their labels.
type ProjectHandler struct {
	service labelcore.Service
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(service labelcore.Service) *ProjectHandler {
	return &ProjectHandler{service: service}
}

// Routes returns the routes for projects.
func (h *ProjectHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateProject)
	r.Get("/", h.ListProjects)

	r.Post("/{projectID}/labels", h.CreateLabel)
	r.Get("/{projectID}/labels", h.ListLabels)
	r.Post("/{projectID}/labels/bulk", h.CreateBulk)
	r.Post("/{projectID}/labels/bulk-unique", h.CreateBulkUnique)

	return r
}

// CreateProjectRequest is the request body for creating a project.
type CreateProjectRequest struct {
	Name string `json:"name"`
}

// ProjectResponse is the response body for a project.
type ProjectResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toProjectResponse(project *labelcore.Project) ProjectResponse {
	return ProjectResponse{
		ID:        project.ID.String(),
		Name:      project.Name,
		CreatedAt: project.CreatedAt,
		UpdatedAt: project.UpdatedAt,
	}
}

// CreateProject creates a new project owned by the caller.
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r)
	if err != nil {
		http.Error(w, "invalid token subject", http.StatusUnauthorized)
		return
	}

	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	project, err := h.service.CreateProject(r.Context(), labelcore.CreateProjectRequest{
		UserID: userID,
		Name:   req.Name,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toProjectResponse(project))
}

// ListProjects lists the caller's projects.
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r)
	if err != nil {
		http.Error(w, "invalid token subject", http.StatusUnauthorized)
		return
	}

	projects, err := h.service.ListProjects(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]ProjectResponse, len(projects))
	for i, project := range projects {
		resp[i] = toProjectResponse(project)
	}
	render.JSON(w, r, resp)
}

// CreateLabelRequest is the request body for creating a label. Name is
// optional; when omitted the service picks a free numbered name. Thumbnail
// is base64-encoded image bytes.
type CreateLabelRequest struct {
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	WidthMM     float64         `json:"width_mm"`
	HeightMM    float64         `json:"height_mm"`
	Content     json.RawMessage `json:"content,omitempty"`
	Thumbnail   string          `json:"thumbnail,omitempty"`
}

// CreateLabel creates a new label in a project.
func (h *ProjectHandler) CreateLabel(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r)
	if err != nil {
		http.Error(w, "invalid token subject", http.StatusUnauthorized)
		return
	}
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		http.Error(w, "invalid project ID", http.StatusBadRequest)
		return
	}

	var req CreateLabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	thumbnail, err := decodeThumbnail(req.Thumbnail)
	if err != nil {
		http.Error(w, "invalid thumbnail encoding", http.StatusBadRequest)
		return
	}

	label, err := h.service.CreateLabel(r.Context(), labelcore.CreateLabelRequest{
		UserID:      userID,
		ProjectID:   projectID,
		Name:        req.Name,
		Description: req.Description,
		WidthMM:     req.WidthMM,
		HeightMM:    req.HeightMM,
		Content:     req.Content,
		Thumbnail:   thumbnail,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toLabelResponse(label))
}

// ListLabels lists a project's labels.
func (h *ProjectHandler) ListLabels(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r)
	if err != nil {
		http.Error(w, "invalid token subject", http.StatusUnauthorized)
		return
	}
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		http.Error(w, "invalid project ID", http.StatusBadRequest)
		return
	}

	labels, err := h.service.ListLabels(r.Context(), labelcore.ListLabelsRequest{
		UserID:    userID,
		ProjectID: projectID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toLabelResponses(labels))
}

// CreateBulkRequest is the request body for creating several labels from
// one template.
type CreateBulkRequest struct {
	Count    int             `json:"count"`
	BaseName string          `json:"base_name,omitempty"`
	WidthMM  float64         `json:"width_mm"`
	HeightMM float64         `json:"height_mm"`
	Content  json.RawMessage `json:"content,omitempty"`
}

// BulkResponse reports the labels created by a bulk operation. On partial
// failure the response still lists what was created.
type BulkResponse struct {
	Labels  []LabelResponse `json:"labels"`
	Created int             `json:"created"`
	Error   string          `json:"error,omitempty"`
}

// CreateBulk creates Count labels sharing one template.
func (h *ProjectHandler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r)
	if err != nil {
		http.Error(w, "invalid token subject", http.StatusUnauthorized)
		return
	}
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		http.Error(w, "invalid project ID", http.StatusBadRequest)
		return
	}

	var req CreateBulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.service.CreateBulk(r.Context(), labelcore.CreateBulkRequest{
		UserID:    userID,
		ProjectID: projectID,
		Count:     req.Count,
		BaseName:  req.BaseName,
		Template: labelcore.LabelTemplate{
			WidthMM:  req.WidthMM,
			HeightMM: req.HeightMM,
			Content:  req.Content,
		},
	})
	h.writeBulkResult(w, r, result, err)
}

// CreateBulkUniqueRequest is the request body for creating several labels
// with per-item payloads.
type CreateBulkUniqueRequest struct {
	BaseName string `json:"base_name,omitempty"`
	Items    []struct {
		WidthMM  float64         `json:"width_mm"`
		HeightMM float64         `json:"height_mm"`
		Content  json.RawMessage `json:"content,omitempty"`
	} `json:"items"`
}

// CreateBulkUnique creates one label per item.
func (h *ProjectHandler) CreateBulkUnique(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r)
	if err != nil {
		http.Error(w, "invalid token subject", http.StatusUnauthorized)
		return
	}
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		http.Error(w, "invalid project ID", http.StatusBadRequest)
		return
	}

	var req CreateBulkUniqueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	items := make([]labelcore.BulkItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = labelcore.BulkItem{
			WidthMM:  item.WidthMM,
			HeightMM: item.HeightMM,
			Content:  item.Content,
		}
	}

	result, err := h.service.CreateBulkUnique(r.Context(), labelcore.CreateBulkUniqueRequest{
		UserID:    userID,
		ProjectID: projectID,
		BaseName:  req.BaseName,
		Items:     items,
	})
	h.writeBulkResult(w, r, result, err)
}

// writeBulkResult renders a bulk outcome. A partial result with an error
// comes back as 207 so the client sees both what succeeded and what failed.
func (h *ProjectHandler) writeBulkResult(w http.ResponseWriter, r *http.Request, result *labelcore.BulkResult, err error) {
	if err != nil && (result == nil || result.Created == 0) {
		writeError(w, r, err)
		return
	}

	resp := BulkResponse{
		Labels:  toLabelResponses(result.Labels),
		Created: result.Created,
	}
	status := http.StatusCreated
	if err != nil {
		resp.Error = "bulk creation incomplete"
		status = http.StatusMultiStatus
	}
	render.Status(r, status)
	render.JSON(w, r, resp)
}
