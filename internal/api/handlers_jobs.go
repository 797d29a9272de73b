package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/dgallion1/mathreel/internal/artifact"
	"github.com/dgallion1/mathreel/internal/doctree"
	"github.com/dgallion1/mathreel/internal/pipeline"
	"github.com/dgallion1/mathreel/internal/render/ffmpeg"
	"github.com/go-chi/chi/v5"
)

// jobResponse is the public view of a job.
type jobResponse struct {
	ID         string              `json:"job_id"`
	Filename   string              `json:"filename"`
	Format     doctree.Format      `json:"format"`
	Title      string              `json:"title,omitempty"`
	Stage      pipeline.Stage      `json:"stage"`
	Progress   int                 `json:"progress"`
	SlideCount int                 `json:"slide_count,omitempty"`
	Error      *pipeline.JobError  `json:"error,omitempty"`
	Cancelling bool                `json:"cancel_requested,omitempty"`
	Options    pipeline.Options    `json:"options"`
	Events     []pipeline.JobEvent `json:"events,omitempty"`
	Artifacts  []pipeline.Artifact `json:"artifacts,omitempty"`
	PollURL    string              `json:"poll_url"`
}

func toResponse(job *pipeline.Job, withEvents bool) jobResponse {
	resp := jobResponse{
		ID:         job.ID,
		Filename:   job.Filename,
		Format:     job.Format,
		Title:      job.Title,
		Stage:      job.Stage,
		Progress:   job.Progress,
		SlideCount: job.SlideCount,
		Error:      job.Error,
		Cancelling: job.CancelRequested && !job.Stage.Terminal(),
		Options:    job.Options,
		Artifacts:  job.Artifacts,
		PollURL:    fmt.Sprintf("/api/jobs/%s", job.ID),
	}
	if withEvents {
		resp.Events = job.Events
	}
	return resp
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	// Extra 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	sub := pipeline.Submission{Filename: header.Filename, Data: data}
	if v := r.FormValue("format"); v != "" {
		f, err := doctree.ParseFormat(v)
		if err != nil {
			jsonError(w, err.Error(), http.StatusUnsupportedMediaType)
			return
		}
		sub.Format = f
	}
	opts, err := s.formOptions(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	sub.Options = opts

	job, err := s.orchestrator.Submit(r.Context(), sub)
	if err != nil {
		if job != nil && errors.Is(err, pipeline.ErrQueueFull) {
			writeJSON(w, http.StatusServiceUnavailable, toResponse(job, false))
			return
		}
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toResponse(job, false))
}

// formOptions reads per-job overrides; unset fields fall back to server defaults.
func (s *Server) formOptions(r *http.Request) (pipeline.Options, error) {
	opts := pipeline.Options{
		TemplateID:      r.FormValue("template_id"),
		Voice:           r.FormValue("voice"),
		Language:        r.FormValue("language"),
		Quality:         r.FormValue("quality"),
		IncludeChapters: s.cfg.IncludeChapters,
	}
	if opts.Quality != "" {
		if _, err := ffmpeg.PresetFor(opts.Quality); err != nil {
			return opts, err
		}
	}
	if v := r.FormValue("include_chapters"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("include_chapters: %w", err)
		}
		opts.IncludeChapters = b
	}
	if v := r.FormValue("max_attempts"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, fmt.Errorf("max_attempts must be a positive integer")
		}
		opts.MaxAttempts = n
	}
	return opts, nil
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.orchestrator.Status(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(job, true))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.orchestrator.Cancel(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toResponse(job, false))
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	objs, err := s.orchestrator.Artifacts(r.Context(), jobID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	prefix := artifact.JobPrefix(jobID)
	items := make([]map[string]any, 0, len(objs))
	for _, o := range objs {
		name := strings.TrimPrefix(o.Key, prefix)
		items = append(items, map[string]any{
			"name": name,
			"size": o.Size,
			"url":  fmt.Sprintf("/api/jobs/%s/artifacts/%s", jobID, name),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"job_id": jobID, "artifacts": items})
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if name == "" || path.Clean("/"+name) != "/"+name {
		jsonError(w, "invalid artifact name", http.StatusBadRequest)
		return
	}
	rc, err := s.orchestrator.OpenArtifact(r.Context(), chi.URLParam(r, "jobID"), name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer rc.Close()

	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	if _, err := io.Copy(w, rc); err != nil {
		s.log.Warn("artifact stream interrupted", "name", name, "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var unsupported *doctree.UnsupportedFormatError
	switch {
	case errors.Is(err, pipeline.ErrNotFound), errors.Is(err, artifact.ErrNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, pipeline.ErrJobFinished), errors.Is(err, pipeline.ErrAlreadyQueued):
		jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, pipeline.ErrQueueFull):
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.As(err, &unsupported):
		jsonError(w, err.Error(), http.StatusUnsupportedMediaType)
	case errors.Is(err, pipeline.ErrEmptyUpload), errors.Is(err, pipeline.ErrInvalidRequest):
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		s.log.Error("request failed", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
