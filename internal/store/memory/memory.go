package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sujithputta02/LifeFlow-AI/internal/store"
	"github.com/sujithputta02/LifeFlow-AI/internal/workflow"
)

type MemoryStore struct {
	mu        sync.RWMutex
	workflows map[string]store.WorkflowRecord
	profiles  map[string]store.GuestProfile
}

func New() *MemoryStore {
	return &MemoryStore{
		workflows: map[string]store.WorkflowRecord{},
		profiles:  map[string]store.GuestProfile{},
	}
}

func (m *MemoryStore) SaveWorkflow(ctx context.Context, record store.WorkflowRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workflows[record.ID] = cloneRecord(record)
	return nil
}

func (m *MemoryStore) ListWorkflows(ctx context.Context, guestID string, limit int) ([]store.WorkflowRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]store.WorkflowRecord, 0, len(m.workflows))
	for _, record := range m.workflows {
		if guestID != "" && record.GuestID != guestID {
			continue
		}
		records = append(records, cloneRecord(record))
	}
	sort.SliceStable(records, func(i, j int) bool {
		left, right := parseTime(records[i].CreatedAt), parseTime(records[j].CreatedAt)
		if left.Equal(right) {
			return records[i].ID > records[j].ID
		}
		return left.After(right)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *MemoryStore) DeleteWorkflow(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.workflows, id)
	return nil
}

func (m *MemoryStore) GetProfile(ctx context.Context, guestID string) (*store.GuestProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	profile, ok := m.profiles[guestID]
	if !ok {
		return nil, nil
	}
	copied := cloneProfile(profile)
	return &copied, nil
}

func (m *MemoryStore) UpsertProfile(ctx context.Context, profile store.GuestProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.GuestID] = cloneProfile(profile)
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func cloneRecord(record store.WorkflowRecord) store.WorkflowRecord {
	out := record
	if record.Steps != nil {
		out.Steps = make([]workflow.Step, len(record.Steps))
		for i, step := range record.Steps {
			step.SubSteps = cloneStrings(step.SubSteps)
			step.Documents = cloneStrings(step.Documents)
			out.Steps[i] = step
		}
	}
	if record.LocationContext != nil {
		location := *record.LocationContext
		out.LocationContext = &location
	}
	return out
}

func cloneProfile(profile store.GuestProfile) store.GuestProfile {
	out := profile
	if profile.Badges != nil {
		out.Badges = append([]store.Badge(nil), profile.Badges...)
	}
	return out
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	return append([]string(nil), values...)
}
