package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/suppression"
	"github.com/ignite/dispatch-engine/internal/warmup"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSendMessage submits one message to the pipeline. The HTTP status
// mirrors the outcome: 200 sent, 202 queued, 422 failed.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var msg domain.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid message body")
		return
	}

	outcome := s.sender.Send(r.Context(), &msg)
	switch outcome.Status {
	case domain.StatusSent:
		respondJSON(w, http.StatusOK, outcome)
	case domain.StatusQueued:
		respondJSON(w, http.StatusAccepted, outcome)
	default:
		respondJSON(w, http.StatusUnprocessableEntity, outcome)
	}
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	n, err := s.retry.Len(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"length": n})
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.regions.CheckAll(r.Context()))
}

func (s *Server) handleListSuppressions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	entries, total, err := s.suppressions.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   total,
	})
}

func (s *Server) handleGetSuppression(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	entry, err := s.suppressions.Get(r.Context(), email)
	if errors.Is(err, suppression.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not suppressed")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

func (s *Server) handleAddSuppression(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email  string `json:"email"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		respondError(w, http.StatusBadRequest, "email required")
		return
	}

	reason := domain.SuppressionReason(req.Reason)
	if reason == "" {
		reason = domain.ReasonManual
	}
	if err := s.suppressions.Add(r.Context(), req.Email, reason, domain.SourceManual); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"email": req.Email, "status": "suppressed"})
}

func (s *Server) handleRemoveSuppression(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	err := s.suppressions.Remove(r.Context(), email)
	if errors.Is(err, suppression.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not suppressed")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"email": email, "status": "removed"})
}

func (s *Server) handleListWarmups(w http.ResponseWriter, r *http.Request) {
	all, err := s.warmups.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, all)
}

func (s *Server) handleStartWarmup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IP   string `json:"ip"`
		Pool string `json:"pool"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IP == "" || req.Pool == "" {
		respondError(w, http.StatusBadRequest, "ip and pool required")
		return
	}

	err := s.warmups.Start(r.Context(), req.IP, req.Pool)
	if errors.Is(err, warmup.ErrAlreadyWarming) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"ip": req.IP, "pool": req.Pool, "status": "warming"})
}

func (s *Server) handleWarmupStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.warmups.Status(r.Context(), chi.URLParam(r, "ip"))
	if errors.Is(err, warmup.ErrNotWarming) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// handleWarmupHistory returns the audit trail for one warming IP, newest
// first. Empty when no audit log is configured.
func (s *Server) handleWarmupHistory(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	_, err := s.warmups.Status(r.Context(), ip)
	if errors.Is(err, warmup.ErrNotWarming) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	history, err := s.warmups.History(r.Context(), ip, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if history == nil {
		history = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ip": ip, "history": history})
}

func (s *Server) handlePauseWarmup(w http.ResponseWriter, r *http.Request) {
	s.warmupAction(w, r, "pause")
}

func (s *Server) handleResumeWarmup(w http.ResponseWriter, r *http.Request) {
	s.warmupAction(w, r, "resume")
}

func (s *Server) warmupAction(w http.ResponseWriter, r *http.Request, action string) {
	ip := chi.URLParam(r, "ip")
	var req struct {
		Note string `json:"note"`
	}
	// The note is optional; an empty body is fine.
	_ = json.NewDecoder(r.Body).Decode(&req)

	var err error
	if action == "pause" {
		err = s.warmups.Pause(r.Context(), ip, req.Note)
	} else {
		err = s.warmups.Resume(r.Context(), ip, req.Note)
	}
	if errors.Is(err, warmup.ErrNotWarming) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"ip": ip, "status": action + "d"})
}
