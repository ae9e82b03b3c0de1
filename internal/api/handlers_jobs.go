package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListPacks lists retained jobs, newest first.
func (s *Server) handleListPacks(w http.ResponseWriter, r *http.Request) {
	jobs := s.orchestrator.ListJobs()
	out := make([]map[string]any, 0, len(jobs))
	for _, job := range jobs {
		snap := job.Snapshot()
		out = append(out, map[string]any{
			"job_id":     snap.ID,
			"url":        snap.Request.SourceURL,
			"status":     snap.Status,
			"phase":      snap.Phase,
			"archive":    snap.Archive,
			"size":       snap.Size,
			"created_at": snap.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"packs": out})
}

// handleDeletePack drops a finished job and its archive.
func (s *Server) handleDeletePack(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	found, deleted := s.orchestrator.DeleteJob(jobID)
	switch {
	case !found:
		jsonError(w, "job not found", http.StatusNotFound)
	case !deleted:
		jsonError(w, "job is still in progress", http.StatusConflict)
	default:
		s.log.Info("pack deleted", "job_id", jobID)
		w.WriteHeader(http.StatusNoContent)
	}
}
