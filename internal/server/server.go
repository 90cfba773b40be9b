// Package server exposes the search over a small RPC-style HTTP surface:
// POST /new starts a batch, GET /update reports its progress and results.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/kmertens/keyforge/internal/job"
)

// Launcher starts a batch in the background. The server does not wait on it;
// completion is observed through the job state.
type Launcher func(batchSize int, jobName string)

// Server wires the job cell to the HTTP handlers.
type Server struct {
	state  *job.State
	launch Launcher
}

// New returns a Server over the given job cell and batch launcher.
func New(state *job.State, launch Launcher) *Server {
	return &Server{state: state, launch: launch}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /new", s.handleNew)
	mux.HandleFunc("GET /update", s.handleUpdate)
	return mux
}

type newRequest struct {
	BatchSize int    `json:"batch_size"`
	JobName   string `json:"job_name"`
}

func (s *Server) handleNew(w http.ResponseWriter, r *http.Request) {
	var req newRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.BatchSize < 1 {
		writeError(w, http.StatusBadRequest, "batch_size must be positive")
		return
	}

	prior, progress, ok := s.state.Begin(req.BatchSize)
	if !ok {
		writeJSON(w, http.StatusConflict, map[string]any{
			"status":     "running",
			"batch_size": progress.BatchSize,
			"completed":  progress.Completed,
		})
		return
	}

	go s.launch(req.BatchSize, req.JobName)

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "started",
		"prior":  prior,
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	snap := s.state.Snapshot()
	switch snap.Phase {
	case job.Init:
		writeJSON(w, http.StatusOK, map[string]any{"status": "init"})
	case job.Running:
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "in_progress",
			"batch_size": snap.Progress.BatchSize,
			"completed":  snap.Progress.Completed,
		})
	case job.Completed:
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "completed",
			"keyboards": snap.Results,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
