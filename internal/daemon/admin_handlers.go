package daemon

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gemdesk/internal/filequeue"
	"gemdesk/internal/logging"
)

type triggerResponse struct {
	Status         string `json:"status"`
	AlreadyRunning bool   `json:"already_running,omitempty"`
}

type lockResponse struct {
	Pipeline string `json:"pipeline"`
	Path     string `json:"path"`
	filequeue.State
	ActiveTask string `json:"active_task,omitempty"`
}

type deleteRequest struct {
	IDs []string `json:"ids"`
}

type deleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// handleTrigger starts a background run and answers before it does any
// work. Outcomes are only visible through the progress document.
func (s *apiServer) handleTrigger(task Task, status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		launched, err := s.daemon.Trigger(chi.URLParam(r, "pipeline"), task)
		if err != nil {
			s.writePipelineError(w, err)
			return
		}
		s.writeJSON(w, http.StatusAccepted, triggerResponse{Status: status, AlreadyRunning: !launched})
	}
}

func (s *apiServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.daemon.Pipeline(chi.URLParam(r, "pipeline"))
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	raw, err := p.Progress()
	if err != nil {
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "progress read failed", "progress_read_failed",
			logging.Pipeline(p.Name()),
			logging.String(logging.FieldErrorHint, "check "+p.ProgressStore().Path()),
			logging.Error(err),
		)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *apiServer) handleLock(w http.ResponseWriter, r *http.Request) {
	p, err := s.daemon.Pipeline(chi.URLParam(r, "pipeline"))
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	state, err := p.Lock().Inspect()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := lockResponse{Pipeline: p.Name(), Path: p.Lock().Path(), State: state}
	if run, ok := s.daemon.runs.Active(p.Name()); ok {
		resp.ActiveTask = run.Task
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleDeleteContracts(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeDelete(w, r)
	if !ok {
		return
	}
	deleted, err := s.daemon.repo.DeleteContracts(r.Context(), req.IDs)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.daemon.logger.Info("contracts deleted", logging.Int64("deleted", deleted))
	s.writeJSON(w, http.StatusOK, deleteResponse{Deleted: deleted})
}

func (s *apiServer) handleDeleteSellers(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeDelete(w, r)
	if !ok {
		return
	}
	deleted, err := s.daemon.repo.DeleteSellers(r.Context(), req.IDs)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.daemon.logger.Info("sellers deleted", logging.Int64("deleted", deleted))
	s.writeJSON(w, http.StatusOK, deleteResponse{Deleted: deleted})
}

func (s *apiServer) decodeDelete(w http.ResponseWriter, r *http.Request) (deleteRequest, bool) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.IDs) == 0 {
		s.writeError(w, http.StatusBadRequest, "body must be {\"ids\": [...]} with at least one id")
		return req, false
	}
	return req, true
}

func (s *apiServer) writePipelineError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrUnknownPipeline) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

