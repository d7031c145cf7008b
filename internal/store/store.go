package store

import (
	"context"

	"github.com/sujithputta02/LifeFlow-AI/internal/workflow"
)

// WorkflowRecord is a generated workflow as persisted for a guest.
type WorkflowRecord struct {
	ID        string `json:"_id"`
	GuestID   string `json:"guestId"`
	Language  string `json:"language,omitempty"`
	CreatedAt string `json:"createdAt"`
	workflow.Workflow
}

type Badge struct {
	ID   string `json:"id"`
	Date string `json:"date"`
}

type GuestProfile struct {
	GuestID    string  `json:"guestId"`
	Points     int     `json:"points"`
	Level      int     `json:"level"`
	Badges     []Badge `json:"badges"`
	LastActive string  `json:"lastActive"`
}

// HasBadge reports whether the profile already holds the badge id.
func (p GuestProfile) HasBadge(id string) bool {
	for _, badge := range p.Badges {
		if badge.ID == id {
			return true
		}
	}
	return false
}

type Store interface {
	SaveWorkflow(ctx context.Context, record WorkflowRecord) error
	// ListWorkflows returns records newest first. An empty guestID lists every guest.
	ListWorkflows(ctx context.Context, guestID string, limit int) ([]WorkflowRecord, error)
	// DeleteWorkflow succeeds when the id is unknown.
	DeleteWorkflow(ctx context.Context, id string) error
	// GetProfile returns nil without error when the guest has no profile yet.
	GetProfile(ctx context.Context, guestID string) (*GuestProfile, error)
	UpsertProfile(ctx context.Context, profile GuestProfile) error
	Ping(ctx context.Context) error
}
