package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"rag-backend/internal/models"
	"rag-backend/internal/rag"
)

type askRequest struct {
	Query    string `json:"query"`
	Filename string `json:"filename,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		jsonError(w, "Query cannot be empty", http.StatusBadRequest)
		return
	}

	resp, err := s.deps.Asker.Ask(r.Context(), rag.Request{
		Question: req.Query,
		Source:   req.Filename,
		History:  s.deps.Sessions.History(r.Context()),
	})
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("query failed")
		if errors.Is(err, models.ErrEmptyInput) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		jsonError(w, "Query processing failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	history := s.deps.Sessions.Append(r.Context(), models.ChatEntry{Query: req.Query, Response: resp.Content})
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Sessions.History(r.Context()))
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.Clear(r.Context()); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("clear session failed")
		jsonError(w, "failed to clear session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Session cleared"})
}
