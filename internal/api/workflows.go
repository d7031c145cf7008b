package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sujithputta02/LifeFlow-AI/internal/events"
	"github.com/sujithputta02/LifeFlow-AI/internal/generator"
	"github.com/sujithputta02/LifeFlow-AI/internal/store"
)

const defaultLanguage = "English"

type generateRequest struct {
	Goal     string `json:"goal"`
	Language string `json:"language"`
	GuestID  string `json:"guestId"`
}

func (s *Server) generateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}
	req.Goal = strings.TrimSpace(req.Goal)
	req.GuestID = strings.TrimSpace(req.GuestID)
	if req.Goal == "" || req.GuestID == "" {
		writeError(w, "Goal and Guest ID are required", http.StatusBadRequest)
		return
	}
	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = defaultLanguage
	}

	ctx := r.Context()
	result, err := s.generator.Generate(ctx, generator.Request{Goal: req.Goal, Language: language})
	if err != nil {
		s.log.Warn("workflow generation aborted", "guest_id", req.GuestID, "error", err)
		writeError(w, "Failed to generate workflow", http.StatusServiceUnavailable)
		return
	}
	s.log.Info("workflow generated",
		"guest_id", req.GuestID,
		"provider", result.Provider,
		"outcome", string(result.Outcome),
		"steps", len(result.Workflow.Steps),
		"sources", len(result.Sources),
		"failed_attempts", len(result.Attempts),
	)

	if result.Workflow.Persistable() {
		record := store.WorkflowRecord{
			ID:        uuid.New().String(),
			GuestID:   req.GuestID,
			Language:  language,
			CreatedAt: s.now().UTC().Format(time.RFC3339Nano),
			Workflow:  result.Workflow,
		}
		if err := s.store.SaveWorkflow(ctx, record); err != nil {
			s.log.Error("failed to save workflow", "guest_id", req.GuestID, "error", err)
		} else {
			w.Header().Set("X-Workflow-Id", record.ID)
			s.publish(req.GuestID, events.TypeWorkflowCreated, map[string]any{
				"id":   record.ID,
				"goal": record.Goal,
			})
		}
	}

	w.Header().Set("X-Workflow-Outcome", string(result.Outcome))
	writeJSON(w, result.Workflow)
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	guestID := strings.TrimSpace(r.URL.Query().Get("guestId"))
	limit := s.cfg.HistoryLimit
	if limit <= 0 {
		limit = 20
	}
	records, err := s.store.ListWorkflows(r.Context(), guestID, limit)
	if err != nil {
		s.log.Error("failed to fetch history", "guest_id", guestID, "error", err)
		writeError(w, "Failed to fetch history", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []store.WorkflowRecord{}
	}
	writeJSON(w, records)
}

func (s *Server) deleteHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteWorkflow(r.Context(), id); err != nil {
		s.log.Error("failed to delete workflow", "workflow_id", id, "error", err)
		writeError(w, "Failed to delete workflow", http.StatusInternalServerError)
		return
	}
	s.publish(strings.TrimSpace(r.URL.Query().Get("guestId")), events.TypeWorkflowDeleted, map[string]any{"id": id})
	writeJSON(w, map[string]string{"message": "Workflow deleted successfully"})
}

type verifyRequest struct {
	StepTitle       string `json:"stepTitle"`
	StepDescription string `json:"stepDescription"`
	UserProof       string `json:"userProof"`
}

func (s *Server) verifyStep(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.StepTitle) == "" || strings.TrimSpace(req.UserProof) == "" {
		writeError(w, "Missing step details or proof", http.StatusBadRequest)
		return
	}
	result, err := s.generator.Verify(r.Context(), generator.VerifyRequest{
		StepTitle:       req.StepTitle,
		StepDescription: req.StepDescription,
		UserProof:       req.UserProof,
	})
	if err != nil {
		s.log.Warn("step verification aborted", "error", err)
		writeError(w, "Failed to verify step", http.StatusServiceUnavailable)
		return
	}
	s.log.Debug("step verified", "provider", result.Provider, "outcome", string(result.Outcome), "complete", result.Verification.IsComplete)
	writeJSON(w, result.Verification)
}
