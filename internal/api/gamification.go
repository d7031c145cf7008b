package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sujithputta02/LifeFlow-AI/internal/gamification"
	"github.com/sujithputta02/LifeFlow-AI/internal/store"
)

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	guestID := strings.TrimSpace(chi.URLParam(r, "guestId"))
	profile, err := s.profiles.Profile(r.Context(), guestID)
	if err != nil {
		s.writeProfileError(w, err, "Failed to fetch profile", guestID)
		return
	}
	writeJSON(w, profile)
}

type updateProfileRequest struct {
	GuestID string        `json:"guestId"`
	Points  int           `json:"points"`
	Level   int           `json:"level"`
	Badges  []store.Badge `json:"badges"`
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.GuestID) == "" {
		writeError(w, "guestId is required", http.StatusBadRequest)
		return
	}
	profile, err := s.profiles.Update(r.Context(), store.GuestProfile{
		GuestID: req.GuestID,
		Points:  req.Points,
		Level:   req.Level,
		Badges:  req.Badges,
	})
	if err != nil {
		s.writeProfileError(w, err, "Failed to update profile", req.GuestID)
		return
	}
	writeJSON(w, profile)
}

type completeStepRequest struct {
	GuestID  string `json:"guestId"`
	Verified bool   `json:"verified"`
}

func (s *Server) completeStep(w http.ResponseWriter, r *http.Request) {
	var req completeStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.GuestID) == "" {
		writeError(w, "guestId is required", http.StatusBadRequest)
		return
	}
	award, err := s.profiles.CompleteStep(r.Context(), req.GuestID, req.Verified)
	if err != nil {
		s.writeProfileError(w, err, "Failed to update profile", req.GuestID)
		return
	}
	writeJSON(w, award)
}

func (s *Server) writeProfileError(w http.ResponseWriter, err error, message, guestID string) {
	if errors.Is(err, gamification.ErrMissingGuestID) {
		writeError(w, "guestId is required", http.StatusBadRequest)
		return
	}
	s.log.Error(strings.ToLower(message), "guest_id", guestID, "error", err)
	writeError(w, message, http.StatusInternalServerError)
}
