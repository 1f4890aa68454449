package api

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/h2adev/reelforge/internal/apierr"
	"github.com/h2adev/reelforge/internal/assembly"
	"github.com/h2adev/reelforge/internal/assetstore"
	"github.com/h2adev/reelforge/internal/catalog"
	"github.com/h2adev/reelforge/internal/ffmpeg"
	"github.com/h2adev/reelforge/internal/models"
	"github.com/h2adev/reelforge/internal/project"
	"github.com/h2adev/reelforge/internal/provider"
	"github.com/h2adev/reelforge/internal/queue"
	"github.com/h2adev/reelforge/internal/uploadcache"
)

// Handler is the thin tool surface over the core services: it validates
// input, then either mutates the project store directly or submits to the
// job queue.
type Handler struct {
	projects  *project.Store
	queue     *queue.Queue
	assets    *assetstore.Store
	provider  *provider.Client
	uploads   *uploadcache.Cache
	assembler *assembly.Assembler
}

func NewHandler(p *project.Store, q *queue.Queue, a *assetstore.Store, prov *provider.Client, uc *uploadcache.Cache, asm *assembly.Assembler) *Handler {
	return &Handler{
		projects:  p,
		queue:     q,
		assets:    a,
		provider:  prov,
		uploads:   uc,
		assembler: asm,
	}
}

// CreateProject handles POST /v1/projects
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title           string   `json:"title"`
		Platform        string   `json:"platform"`
		Script          string   `json:"script,omitempty"`
		TargetDurationS *float64 `json:"target_duration_s,omitempty"`
		AspectRatio     string   `json:"aspect_ratio,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondAPIError(w, apierr.Validation("Invalid request body", nil, "send a JSON object", `{"title":"Demo","platform":"tiktok"}`))
		return
	}

	if req.Title == "" {
		respondAPIError(w, apierr.Validation(
			"Project title cannot be empty", nil,
			"Provide a descriptive title for your project",
			`{"title":"My Product Launch Video","platform":"youtube"}`,
		))
		return
	}
	if !catalog.KnownPlatform(req.Platform) {
		respondAPIError(w, apierr.Validation(
			"Unknown platform "+req.Platform,
			catalog.AllPlatforms(),
			"Pick one of the supported platform tags",
			`{"platform":"tiktok"}`,
		))
		return
	}

	spec := catalog.Platform(req.Platform)

	if req.TargetDurationS != nil {
		d := *req.TargetDurationS
		if d < 1 || d > 3600 {
			respondAPIError(w, apierr.Validation(
				"target_duration_s must be between 1 and 3600", nil,
				"Provide the duration as seconds", `{"target_duration_s": 30}`,
			))
			return
		}
		if spec.MaxDurationS > 0 && d > float64(spec.MaxDurationS) {
			respondAPIError(w, apierr.Validation(
				req.Platform+" videos cannot exceed "+strconv.Itoa(spec.MaxDurationS)+" seconds", nil,
				"Use a shorter target duration for this platform",
				`{"target_duration_s": `+strconv.Itoa(spec.RecommendedDuration)+`}`,
			))
			return
		}
	} else {
		d := float64(spec.RecommendedDuration)
		req.TargetDurationS = &d
	}

	if req.AspectRatio == "" {
		req.AspectRatio = spec.DefaultAspectRatio
	} else {
		ok := false
		for _, ar := range spec.AspectRatios {
			if ar == req.AspectRatio {
				ok = true
				break
			}
		}
		if !ok {
			respondAPIError(w, apierr.Validation(
				"Aspect ratio "+req.AspectRatio+" is not supported by "+req.Platform,
				spec.AspectRatios,
				"Use one of the platform's supported aspect ratios, or omit it for the default",
				`{"aspect_ratio":"`+spec.DefaultAspectRatio+`"}`,
			))
			return
		}
	}

	p := h.projects.Create(project.CreateInput{
		Title:           req.Title,
		Platform:        req.Platform,
		AspectRatio:     req.AspectRatio,
		TargetDurationS: req.TargetDurationS,
		Script:          req.Script,
	})
	respondJSON(w, http.StatusCreated, p)
}

// ListProjects handles GET /v1/projects
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"projects": h.projects.List()})
}

// GetProject handles GET /v1/projects/{id}
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, ok := h.projectFromPath(w, r, "id")
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// GetCurrentProject handles GET /v1/projects/current
func (h *Handler) GetCurrentProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.Current()
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// SetCurrentProject handles PUT /v1/projects/{id}/current
func (h *Handler) SetCurrentProject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondAPIError(w, apierr.Validation("Invalid project ID", nil, "pass the project's UUID", ""))
		return
	}
	if err := h.projects.SetCurrent(id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"current_project_id": id.String()})
}

// UpdateProject handles PATCH /v1/projects/{id} — caller-driven fields
// only (status, script, title); derived fields are never writable.
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondAPIError(w, apierr.Validation("Invalid project ID", nil, "pass the project's UUID", ""))
		return
	}

	var req struct {
		Status *models.ProjectStatus `json:"status,omitempty"`
		Script *string               `json:"script,omitempty"`
		Title  *string               `json:"title,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondAPIError(w, apierr.Validation("Invalid request body", nil, "", ""))
		return
	}

	if req.Status != nil {
		switch *req.Status {
		case models.ProjectStatusDraft, models.ProjectStatusInProgress, models.ProjectStatusRendering,
			models.ProjectStatusCompleted, models.ProjectStatusFailed:
		default:
			respondAPIError(w, apierr.Validation(
				"Invalid status "+string(*req.Status),
				[]string{"draft", "in_progress", "rendering", "completed", "failed"},
				"Use one of the project statuses", `{"status":"in_progress"}`,
			))
			return
		}
	}

	p, err := h.projects.Update(id, func(p *models.Project) {
		if req.Status != nil {
			p.Status = *req.Status
		}
		if req.Script != nil {
			p.Script = *req.Script
		}
		if req.Title != nil {
			p.Title = *req.Title
		}
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// AddScene handles POST /v1/projects/{id}/scenes
func (h *Handler) AddScene(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondAPIError(w, apierr.Validation("Invalid project ID", nil, "pass the project's UUID", ""))
		return
	}

	var req struct {
		Description string  `json:"description"`
		DurationS   float64 `json:"duration_s"`
		Position    *int    `json:"position,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondAPIError(w, apierr.Validation("Invalid request body", nil, "", `{"description":"intro","duration_s":5}`))
		return
	}
	if req.DurationS <= 0 {
		respondAPIError(w, apierr.Validation(
			"duration_s must be positive", nil,
			"Scene duration is seconds of final footage", `{"duration_s": 5}`,
		))
		return
	}

	scene := &models.Scene{Description: req.Description, DurationS: req.DurationS}
	created, err := h.projects.AddScene(id, scene, req.Position)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// ClearProjects handles DELETE /v1/projects — dev/test reset.
func (h *Handler) ClearProjects(w http.ResponseWriter, r *http.Request) {
	h.projects.ClearAll()
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// SubmitJob handles POST /v1/jobs: price the request, then create and
// start its background worker, returning the job id immediately.
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TaskKind  models.TaskKind `json:"task_kind"`
		ModelID   string          `json:"model_id"`
		Arguments models.Metadata `json:"arguments"`
		ProjectID *uuid.UUID      `json:"project_id,omitempty"`
		SceneID   *uuid.UUID      `json:"scene_id,omitempty"`
		Metadata  models.Metadata `json:"metadata,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondAPIError(w, apierr.Validation("Invalid request body", nil, "",
			`{"task_kind":"video","model_id":"video-A","arguments":{"duration_s":5}}`))
		return
	}

	if req.Metadata == nil {
		req.Metadata = models.Metadata{}
	}
	if _, ok := req.Metadata["cost"]; !ok {
		if spec, err := catalog.Lookup(req.ModelID); err == nil && spec.CostFormula != nil {
			req.Metadata["cost"] = spec.CostFormula(req.Arguments)
		}
	}

	jobID, err := h.queue.Submit(queue.CreateInput{
		TaskKind:  req.TaskKind,
		ModelID:   req.ModelID,
		Arguments: req.Arguments,
		ProjectID: req.ProjectID,
		SceneID:   req.SceneID,
		Metadata:  req.Metadata,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID.String()})
}

// GetJob handles GET /v1/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondAPIError(w, apierr.Validation("Invalid job ID", nil, "pass the job's UUID", ""))
		return
	}
	job, err := h.queue.Get(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /v1/jobs?project_id=&status=
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	var projectID *uuid.UUID
	if raw := r.URL.Query().Get("project_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondAPIError(w, apierr.Validation("Invalid project_id filter", nil, "", ""))
			return
		}
		projectID = &id
	}

	var statuses []models.JobStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		switch s := models.JobStatus(raw); s {
		case models.JobStatusQueued, models.JobStatusInProgress, models.JobStatusCompleted,
			models.JobStatusFailed, models.JobStatusCancelled:
			statuses = append(statuses, s)
		default:
			respondAPIError(w, apierr.Validation(
				"Invalid status filter "+raw,
				[]string{"queued", "in_progress", "completed", "failed", "cancelled"},
				"Use one of the job statuses", "?status=in_progress",
			))
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{"jobs": h.queue.List(projectID, statuses)})
}

// CancelJob handles POST /v1/jobs/{id}/cancel
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondAPIError(w, apierr.Validation("Invalid job ID", nil, "pass the job's UUID", ""))
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": h.queue.Cancel(id)})
}

// QueueStats handles GET /v1/jobs/stats
func (h *Handler) QueueStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.queue.Stats())
}

// WaitJob handles GET /v1/jobs/{id}/wait?timeout_s= — a client-side
// watcher over the local job record, not the provider.
func (h *Handler) WaitJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondAPIError(w, apierr.Validation("Invalid job ID", nil, "pass the job's UUID", ""))
		return
	}

	timeout := 60 * time.Second
	if raw := r.URL.Query().Get("timeout_s"); raw != "" {
		if t, err := strconv.ParseFloat(raw, 64); err == nil && t > 0 {
			timeout = time.Duration(t * float64(time.Second))
		}
	}

	job, err := h.queue.Wait(r.Context(), id, timeout, 0)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// CleanupJobs handles POST /v1/jobs/cleanup?age_hours=
func (h *Handler) CleanupJobs(w http.ResponseWriter, r *http.Request) {
	ageHours := 24
	if raw := r.URL.Query().Get("age_hours"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			ageHours = n
		}
	}
	respondJSON(w, http.StatusOK, map[string]int{"removed": h.queue.Cleanup(ageHours)})
}

// Upload handles POST /v1/uploads {local_path}: content-hash the file,
// reuse the cached provider URL if fresh, upload otherwise.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LocalPath   string `json:"local_path"`
		ContentType string `json:"content_type,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.LocalPath == "" {
		respondAPIError(w, apierr.Validation("local_path is required", nil,
			"Pass the path of a local file to upload", `{"local_path":"/tmp/a.png"}`))
		return
	}
	if req.ContentType == "" {
		req.ContentType = "application/octet-stream"
	}

	res, err := h.uploads.GetOrUpload(req.LocalPath, func(path string) (string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return h.provider.Upload(r.Context(), data, req.ContentType)
	})
	if err != nil {
		respondAPIError(w, apierr.System("upload failed", err.Error()))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"url": res.URL, "cached": res.Cached, "sha256": res.SHA256})
}

// Assemble handles POST /v1/projects/{id}/assemble
func (h *Handler) Assemble(w http.ResponseWriter, r *http.Request) {
	p, ok := h.projectFromPath(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		SceneIDs      []string `json:"scene_ids,omitempty"`
		Format        string   `json:"format,omitempty"`
		AddLogo       bool     `json:"add_logo,omitempty"`
		LogoPosition  string   `json:"logo_position,omitempty"`
		LogoPaddingPx int      `json:"logo_padding_px,omitempty"`
		AddEndClip    bool     `json:"add_end_clip,omitempty"`
		SubtitlePath  string   `json:"subtitle_path,omitempty"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondAPIError(w, apierr.Validation("Invalid request body", nil, "", `{"add_logo":true,"logo_position":"br"}`))
			return
		}
	}
	if req.LogoPosition != "" {
		switch req.LogoPosition {
		case "br", "bl", "tr", "tl":
		default:
			respondAPIError(w, apierr.Validation(
				"Invalid logo_position "+req.LogoPosition,
				[]string{"br", "bl", "tr", "tl"},
				"Use a corner abbreviation", `{"logo_position":"br"}`,
			))
			return
		}
	}

	result, err := h.assembler.Assemble(r.Context(), p, assembly.Options{
		SceneIDs:      req.SceneIDs,
		Format:        req.Format,
		AddLogo:       req.AddLogo,
		LogoPosition:  ffmpeg.LogoPosition(req.LogoPosition),
		LogoPaddingPx: req.LogoPaddingPx,
		AddEndClip:    req.AddEndClip,
		SubtitlePath:  req.SubtitlePath,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// StorageUsage handles GET /v1/projects/{id}/storage
func (h *Handler) StorageUsage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondAPIError(w, apierr.Validation("Invalid project ID", nil, "pass the project's UUID", ""))
		return
	}
	bytes, err := h.assets.StorageUsage(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"bytes": bytes})
}

// ListPlatforms handles GET /v1/platforms
func (h *Handler) ListPlatforms(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]catalog.PlatformSpec)
	for _, tag := range catalog.AllPlatforms() {
		out[tag] = catalog.Platform(tag)
	}
	respondJSON(w, http.StatusOK, out)
}

// GetPlatform handles GET /v1/platforms/{tag}
func (h *Handler) GetPlatform(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	if !catalog.KnownPlatform(tag) {
		respondAPIError(w, apierr.Validation("Unknown platform "+tag, catalog.AllPlatforms(),
			"Pick one of the supported platform tags", ""))
		return
	}
	spec := catalog.Platform(tag)
	width, height, _ := catalog.AspectRatioDimensions(spec.DefaultAspectRatio)
	respondJSON(w, http.StatusOK, map[string]any{
		"spec":           spec,
		"default_width":  width,
		"default_height": height,
	})
}

func (h *Handler) projectFromPath(w http.ResponseWriter, r *http.Request, param string) (*models.Project, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		respondAPIError(w, apierr.Validation("Invalid project ID", nil, "pass the project's UUID", ""))
		return nil, false
	}
	p, err := h.projects.Get(id)
	if err != nil {
		respondError(w, err)
		return nil, false
	}
	return p, true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError maps a typed apierr to its HTTP status, falling back to 500
// for anything untyped.
func respondError(w http.ResponseWriter, err error) {
	if apiErr, ok := err.(*apierr.Error); ok {
		respondAPIError(w, apiErr)
		return
	}
	respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func respondAPIError(w http.ResponseWriter, e *apierr.Error) {
	status := http.StatusInternalServerError
	switch e.Type {
	case apierr.KindValidation:
		status = http.StatusBadRequest
	case apierr.KindResourceNotFound, apierr.KindNotFound:
		status = http.StatusNotFound
	case apierr.KindState, apierr.KindInvalidOperation:
		status = http.StatusConflict
	case apierr.KindAPI:
		status = http.StatusBadGateway
	}
	respondJSON(w, status, map[string]any{"error": e})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
