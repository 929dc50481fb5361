package server

import (
	"encoding/json"
	"net/http"

	"github.com/goliatone/go-webstats/cache"
	"github.com/google/uuid"
)

// Events applies game state changes posted to the /events routes.
type Events interface {
	Join(player cache.Entity)
	SetAFK(id uuid.UUID, afk bool) bool
	Quit(id uuid.UUID) bool
	SetPlaceholders(id uuid.UUID, values map[string]string) bool
	SetScores(objective string, scores map[string]int)
}

type joinRequest struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	AFK  bool      `json:"afk"`
}

type quitRequest struct {
	ID uuid.UUID `json:"id"`
}

type placeholdersRequest struct {
	ID           uuid.UUID         `json:"id"`
	Placeholders map[string]string `json:"placeholders"`
}

type scoresRequest struct {
	Objective string         `json:"objective"`
	Scores    map[string]int `json:"scores"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ID == uuid.Nil {
		http.Error(w, "Missing player id", http.StatusBadRequest)
		return
	}

	s.opts.Events.Join(cache.Entity{ID: req.ID, Name: req.Name})
	if req.AFK {
		s.opts.Events.SetAFK(req.ID, true)
	}
	s.invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQuit(w http.ResponseWriter, r *http.Request) {
	var req quitRequest
	if !decode(w, r, &req) {
		return
	}
	if !s.opts.Events.Quit(req.ID) {
		http.Error(w, "Player not online", http.StatusNotFound)
		return
	}
	s.invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlaceholders(w http.ResponseWriter, r *http.Request) {
	var req placeholdersRequest
	if !decode(w, r, &req) {
		return
	}
	if !s.opts.Events.SetPlaceholders(req.ID, req.Placeholders) {
		http.Error(w, "Unknown player", http.StatusNotFound)
		return
	}
	s.invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	var req scoresRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Objective == "" {
		http.Error(w, "Missing objective", http.StatusBadRequest)
		return
	}
	s.opts.Events.SetScores(req.Objective, req.Scores)
	s.invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
