package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/projpack/internal/pipeline"
	"github.com/dgallion1/projpack/internal/report"
)

const maxRequestBytes = 1 << 20

// packBody is the JSON form of a pack request. Nil fields take the
// configured defaults.
type packBody struct {
	URL                  string `json:"url"`
	Title                string `json:"title"`
	Quality              *int   `json:"quality"`
	EnableCompression    *bool  `json:"enable_compression"`
	SaveImagesSeparately *bool  `json:"save_images_separately"`
}

func (s *Server) request(b packBody) pipeline.Request {
	req := pipeline.Request{
		SourceURL:            strings.TrimSpace(b.URL),
		Title:                strings.TrimSpace(b.Title),
		Quality:              s.cfg.DefaultQuality,
		EnableCompression:    s.cfg.EnableCompression,
		SaveImagesSeparately: s.cfg.SaveImagesSeparately,
	}
	if b.Quality != nil {
		req.Quality = *b.Quality
	}
	if b.EnableCompression != nil {
		req.EnableCompression = *b.EnableCompression
	}
	if b.SaveImagesSeparately != nil {
		req.SaveImagesSeparately = *b.SaveImagesSeparately
	}
	return req
}

// submit validates and queues one request. The returned status is the HTTP
// code to report when err is non-nil.
func (s *Server) submit(b packBody) (*pipeline.Job, int, error) {
	req := s.request(b)
	if err := req.Validate(); err != nil {
		return nil, http.StatusBadRequest, err
	}
	job, err := pipeline.NewJob(req)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	if err := s.orchestrator.Submit(job); err != nil {
		return nil, http.StatusServiceUnavailable, err
	}
	s.log.Info("pack queued", "job_id", job.ID, "source", req.SourceURL)
	return job, 0, nil
}

func (s *Server) handleSubmitPack(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	var body packBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.URL == "" {
		jsonError(w, "url is required", http.StatusBadRequest)
		return
	}

	job, code, err := s.submit(body)
	if err != nil {
		jsonError(w, err.Error(), code)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": pollURL(job.ID),
	})
}

func (s *Server) handleBatchPack(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes*4)

	var body struct {
		Packs []packBody `json:"packs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(body.Packs) == 0 {
		jsonError(w, "at least one pack is required", http.StatusBadRequest)
		return
	}

	results := make([]map[string]any, 0, len(body.Packs))
	for _, p := range body.Packs {
		job, _, err := s.submit(p)
		if err != nil {
			results = append(results, map[string]any{
				"url":   p.URL,
				"error": err.Error(),
			})
			continue
		}
		results = append(results, map[string]any{
			"url":      p.URL,
			"job_id":   job.ID,
			"status":   pipeline.StatusQueued,
			"poll_url": pollURL(job.ID),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"jobs": results})
}

func (s *Server) handlePackStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":     snap.ID,
		"status":     snap.Status,
		"phase":      snap.Phase,
		"progress":   snap.Progress,
		"archive":    snap.Archive,
		"size":       snap.Size,
		"elapsed_ms": snap.ElapsedMS,
		"errors":     snap.Progress.Errors,
	})
}

// finished returns the result of a completed job or writes the error
// response and returns nil.
func (s *Server) finished(w http.ResponseWriter, r *http.Request) *pipeline.Result {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return nil
	}
	res := job.Result()
	if res == nil {
		snap := job.Snapshot()
		jsonError(w, fmt.Sprintf("job is %s", snap.Status), http.StatusConflict)
		return nil
	}
	return res
}

func (s *Server) handlePackArchive(w http.ResponseWriter, r *http.Request) {
	res := s.finished(w, r)
	if res == nil {
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Archive)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sanitizeFilename(res.Name)))
	w.Write(res.Archive)
}

func (s *Server) handlePackReport(w http.ResponseWriter, r *http.Request) {
	res := s.finished(w, r)
	if res == nil {
		return
	}
	page, err := report.HTML(res)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func pollURL(id string) string {
	return fmt.Sprintf("/api/packs/%s/status", id)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == '"' {
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." {
		name = "project.zip"
	}
	return name
}
