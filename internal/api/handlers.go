package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/audioroom/maestro/internal/backend"
	"github.com/audioroom/maestro/internal/log"
	"github.com/audioroom/maestro/internal/orchestrator"
	"github.com/audioroom/maestro/internal/queue"
	"github.com/audioroom/maestro/internal/room"
	"github.com/go-chi/chi/v5"
)

type playRequest struct {
	UserID        string `json:"user_id"`
	TextChannelID string `json:"text_channel_id"`
	Query         string `json:"query"`
}

type userRequest struct {
	UserID string `json:"user_id"`
}

type volumeRequest struct {
	UserID  string `json:"user_id"`
	Percent int    `json:"percent"`
}

type filterRequest struct {
	UserID string `json:"user_id"`
	Preset string `json:"preset"`
}

type positionRequest struct {
	UserID   string `json:"user_id"`
	Position int    `json:"position"`
}

type moveRequest struct {
	UserID string `json:"user_id"`
	From   int    `json:"from"`
	To     int    `json:"to"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query must not be empty", "bad_request")
		return
	}
	res, err := s.orch.Play(r.Context(), chi.URLParam(r, "roomID"), req.UserID, req.TextChannelID, req.Query)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	s.simpleCommand(w, r, s.orch.Skip)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.simpleCommand(w, r, s.orch.Pause)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.simpleCommand(w, r, s.orch.Resume)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.simpleCommand(w, r, s.orch.Stop)
}

func (s *Server) handleShuffle(w http.ResponseWriter, r *http.Request) {
	s.simpleCommand(w, r, s.orch.Shuffle)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.simpleCommand(w, r, s.orch.Disconnect)
}

func (s *Server) handleLoop(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decode(w, r, &req) {
		return
	}
	mode, err := s.orch.Loop(r.Context(), chi.URLParam(r, "roomID"), req.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"loop": mode})
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if !decode(w, r, &req) {
		return
	}
	applied, err := s.orch.Volume(r.Context(), chi.URLParam(r, "roomID"), req.UserID, req.Percent)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"volume": applied})
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.orch.SetFilter(r.Context(), chi.URLParam(r, "roomID"), req.UserID, req.Preset); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"filter": req.Preset})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if !decode(w, r, &req) {
		return
	}
	removed, err := s.orch.Remove(r.Context(), chi.URLParam(r, "roomID"), req.UserID, req.Position)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.orch.Move(r.Context(), chi.URLParam(r, "roomID"), req.UserID, req.From, req.To); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"moved": true})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, "page must be an integer", "bad_request")
			return
		}
		page = n
	}
	res, err := s.orch.QueuePage(r.Context(), chi.URLParam(r, "roomID"), r.URL.Query().Get("user_id"), page)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleNow(w http.ResponseWriter, r *http.Request) {
	res, err := s.orch.Now(r.Context(), chi.URLParam(r, "roomID"), r.URL.Query().Get("user_id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) simpleCommand(w http.ResponseWriter, r *http.Request, cmd func(ctx context.Context, roomID, userID string) error) {
	var req userRequest
	if !decode(w, r, &req) {
		return
	}
	if err := cmd(r.Context(), chi.URLParam(r, "roomID"), req.UserID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func decode(w http.ResponseWriter, r *http.Request, into any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "bad_request")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeDomainError maps orchestrator sentinels to HTTP status codes.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.WithContext(r.Context(), log.WithComponent("api"))

	switch {
	case errors.Is(err, room.ErrNotConnected):
		writeError(w, http.StatusNotFound, err.Error(), "not_connected")
	case errors.Is(err, room.ErrWrongChannel):
		writeError(w, http.StatusForbidden, err.Error(), "wrong_channel")
	case errors.Is(err, queue.ErrFull):
		writeError(w, http.StatusConflict, err.Error(), "queue_full")
	case errors.Is(err, queue.ErrInvalidPage):
		writeError(w, http.StatusBadRequest, err.Error(), "invalid_page")
	case errors.Is(err, orchestrator.ErrInvalidPosition):
		writeError(w, http.StatusBadRequest, err.Error(), "invalid_position")
	case errors.Is(err, orchestrator.ErrInvalidState), errors.Is(err, orchestrator.ErrNothingToLoop):
		writeError(w, http.StatusConflict, err.Error(), "invalid_state")
	case errors.Is(err, backend.ErrNoResults):
		writeError(w, http.StatusNotFound, err.Error(), "no_results")
	case errors.Is(err, backend.ErrUnavailable):
		writeError(w, http.StatusBadGateway, err.Error(), "backend_unavailable")
	default:
		logger.Error().Err(err).Msg("unhandled command error")
		writeError(w, http.StatusInternalServerError, "internal error", "internal")
	}
}
