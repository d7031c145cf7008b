package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sujithputta02/LifeFlow-AI/internal/store"
	"github.com/sujithputta02/LifeFlow-AI/internal/store/storetest"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "lifeflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newTestStore(t) })
}

func TestNew_InMemory(t *testing.T) {
	s, err := New(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.SaveWorkflow(ctx, storetest.Record("wf-1", "g", time.Now())))
	records, err := s.ListWorkflows(ctx, "g", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestNew_OpenError(t *testing.T) {
	prev := openDB
	openDB = func(driverName, dataSourceName string) (*sql.DB, error) {
		return nil, errors.New("open error")
	}
	defer func() { openDB = prev }()

	_, err := New("ignored.db")
	require.Error(t, err)
}

func TestNew_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lifeflow.db")
	ctx := context.Background()

	first, err := New(path)
	require.NoError(t, err)
	require.NoError(t, first.UpsertProfile(ctx, store.GuestProfile{GuestID: "g", Points: 30, Level: 1, LastActive: time.Now().Format(time.RFC3339Nano)}))
	require.NoError(t, first.Close())

	second, err := New(path)
	require.NoError(t, err)
	defer second.Close()
	profile, err := second.GetProfile(ctx, "g")
	require.NoError(t, err)
	require.NotNil(t, profile)
	require.Equal(t, 30, profile.Points)
}

func TestListWorkflows_SubsecondOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveWorkflow(ctx, storetest.Record("later", "g", base.Add(500*time.Millisecond))))
	require.NoError(t, s.SaveWorkflow(ctx, storetest.Record("earlier", "g", base.Add(90*time.Millisecond))))
	require.NoError(t, s.SaveWorkflow(ctx, storetest.Record("whole", "g", base)))

	records, err := s.ListWorkflows(ctx, "g", 0)
	require.NoError(t, err)
	require.Equal(t, "later", records[0].ID)
	require.Equal(t, "earlier", records[1].ID)
	require.Equal(t, "whole", records[2].ID)
}

func TestFormatTime(t *testing.T) {
	require.Equal(t, "2026-05-01T12:00:00.500000000Z", formatTime("2026-05-01T14:00:00.5+02:00"))
	require.Equal(t, "2026-05-01T12:00:00.5Z", parseTime("2026-05-01T12:00:00.500000000Z"))
	require.Equal(t, "garbage", parseTime("garbage"))
}
