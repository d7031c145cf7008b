// Package storetest holds the behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sujithputta02/LifeFlow-AI/internal/store"
	"github.com/sujithputta02/LifeFlow-AI/internal/workflow"
)

// Run exercises a fresh, empty store returned by newStore for each subtest.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("SaveAndList", func(t *testing.T) { testSaveAndList(t, newStore(t)) })
	t.Run("ListNewestFirstWithLimit", func(t *testing.T) { testListOrder(t, newStore(t)) })
	t.Run("ListFiltersByGuest", func(t *testing.T) { testListFilter(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("ProfileLifecycle", func(t *testing.T) { testProfile(t, newStore(t)) })
	t.Run("ConcurrentSaves", func(t *testing.T) { testConcurrentSaves(t, newStore(t)) })
	t.Run("Ping", func(t *testing.T) { require.NoError(t, newStore(t).Ping(context.Background())) })
}

func Record(id, guestID string, createdAt time.Time) store.WorkflowRecord {
	origin := "Home"
	return store.WorkflowRecord{
		ID:        id,
		GuestID:   guestID,
		Language:  "English",
		CreatedAt: createdAt.UTC().Format(time.RFC3339Nano),
		Workflow: workflow.Workflow{
			Goal:            "renew passport " + id,
			ConfidenceScore: 95,
			LocationContext: &workflow.LocationContext{IsLocationBased: true, Origin: &origin},
			Steps: []workflow.Step{{
				StepID:      1,
				Title:       "Gather documents",
				Description: "Collect the old passport and photos.",
				SubSteps:    []string{"Find passport", "Take photos"},
				Documents:   []string{"Old passport"},
				Source:      "https://example.gov/passport",
			}},
		},
	}
}

func testSaveAndList(t *testing.T, s store.Store) {
	ctx := context.Background()
	record := Record("wf-1", "guest-1", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, s.SaveWorkflow(ctx, record))

	records, err := s.ListWorkflows(ctx, "guest-1", 20)
	require.NoError(t, err)
	require.Len(t, records, 1)
	got := records[0]
	require.Equal(t, record.ID, got.ID)
	require.Equal(t, record.GuestID, got.GuestID)
	require.Equal(t, record.Language, got.Language)
	require.Equal(t, record.Goal, got.Goal)
	require.Equal(t, record.ConfidenceScore, got.ConfidenceScore)
	require.Equal(t, record.Steps, got.Steps)
	require.NotNil(t, got.LocationContext)
	require.True(t, got.LocationContext.IsLocationBased)
	require.Equal(t, "Home", *got.LocationContext.Origin)
	require.Nil(t, got.LocationContext.Destination)
	require.True(t, parse(t, record.CreatedAt).Equal(parse(t, got.CreatedAt)))
}

func testListOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveWorkflow(ctx, Record(fmt.Sprintf("wf-%d", i), "guest-1", base.Add(time.Duration(i)*time.Minute))))
	}
	records, err := s.ListWorkflows(ctx, "guest-1", 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, []string{"wf-4", "wf-3", "wf-2"}, ids(records))
}

func testListFilter(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveWorkflow(ctx, Record("a", "guest-a", now)))
	require.NoError(t, s.SaveWorkflow(ctx, Record("b", "guest-b", now.Add(time.Second))))

	records, err := s.ListWorkflows(ctx, "guest-a", 20)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, ids(records))

	all, err := s.ListWorkflows(ctx, "", 20)
	require.NoError(t, err)
	require.Equal(t, []string{"b", "a"}, ids(all))

	none, err := s.ListWorkflows(ctx, "guest-missing", 20)
	require.NoError(t, err)
	require.Empty(t, none)
}

func testDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveWorkflow(ctx, Record("wf-1", "guest-1", time.Now())))
	require.NoError(t, s.DeleteWorkflow(ctx, "wf-1"))
	require.NoError(t, s.DeleteWorkflow(ctx, "wf-unknown"))

	records, err := s.ListWorkflows(ctx, "guest-1", 20)
	require.NoError(t, err)
	require.Empty(t, records)
}

func testProfile(t *testing.T, s store.Store) {
	ctx := context.Background()
	missing, err := s.GetProfile(ctx, "guest-1")
	require.NoError(t, err)
	require.Nil(t, missing)

	profile := store.GuestProfile{
		GuestID:    "guest-1",
		Points:     10,
		Level:      1,
		Badges:     []store.Badge{{ID: "first_step", Date: "2026-03-01T00:00:00Z"}},
		LastActive: "2026-03-01T00:00:00Z",
	}
	require.NoError(t, s.UpsertProfile(ctx, profile))

	profile.Points = 120
	profile.Level = 2
	profile.Badges = append(profile.Badges, store.Badge{ID: "verified_pro", Date: "2026-03-02T00:00:00Z"})
	profile.LastActive = "2026-03-02T00:00:00Z"
	require.NoError(t, s.UpsertProfile(ctx, profile))

	got, err := s.GetProfile(ctx, "guest-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 120, got.Points)
	require.Equal(t, 2, got.Level)
	require.Len(t, got.Badges, 2)
	require.Equal(t, "verified_pro", got.Badges[1].ID)
	require.True(t, got.HasBadge("first_step"))
	require.True(t, parse(t, profile.LastActive).Equal(parse(t, got.LastActive)))
}

func testConcurrentSaves(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now()
	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.SaveWorkflow(ctx, Record(fmt.Sprintf("wf-%d", i), "guest-1", now.Add(time.Duration(i)*time.Millisecond)))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	records, err := s.ListWorkflows(ctx, "guest-1", 0)
	require.NoError(t, err)
	require.Len(t, records, 10)
}

func ids(records []store.WorkflowRecord) []string {
	out := make([]string, 0, len(records))
	for _, record := range records {
		out = append(out, record.ID)
	}
	return out
}

func parse(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339Nano, value)
	require.NoError(t, err)
	return parsed
}
