package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/sujithputta02/LifeFlow-AI/internal/store"
	"github.com/sujithputta02/LifeFlow-AI/internal/workflow"
)

// Timestamps are stored as fixed-width UTC text so they order lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteStore struct {
	db *sql.DB
}

var openDB = sql.Open

// New opens the database at path and creates the tables when missing.
func New(path string) (*SQLiteStore, error) {
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection serialises writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	queries := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			guest_id TEXT NOT NULL DEFAULT '',
			goal TEXT NOT NULL,
			language TEXT NOT NULL DEFAULT '',
			confidence_score INTEGER NOT NULL DEFAULT 0,
			location_context TEXT,
			steps TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS workflows_guest_created_idx ON workflows (guest_id, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS guest_profiles (
			guest_id TEXT PRIMARY KEY,
			points INTEGER NOT NULL DEFAULT 0,
			level INTEGER NOT NULL DEFAULT 1,
			badges TEXT NOT NULL DEFAULT '[]',
			last_active TEXT NOT NULL
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create sqlite schema: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveWorkflow(ctx context.Context, record store.WorkflowRecord) error {
	steps := record.Steps
	if steps == nil {
		steps = []workflow.Step{}
	}
	stepsBytes, err := json.Marshal(steps)
	if err != nil {
		return err
	}
	var location any
	if record.LocationContext != nil {
		locationBytes, err := json.Marshal(record.LocationContext)
		if err != nil {
			return err
		}
		location = string(locationBytes)
	}
	const query = `
		INSERT INTO workflows (id, guest_id, goal, language, confidence_score, location_context, steps, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			goal = excluded.goal,
			language = excluded.language,
			confidence_score = excluded.confidence_score,
			location_context = excluded.location_context,
			steps = excluded.steps
	`
	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.GuestID,
		record.Goal,
		record.Language,
		record.ConfidenceScore,
		location,
		string(stepsBytes),
		formatTime(record.CreatedAt),
	)
	return err
}

func (s *SQLiteStore) ListWorkflows(ctx context.Context, guestID string, limit int) ([]store.WorkflowRecord, error) {
	query := `
		SELECT id, guest_id, goal, language, confidence_score, location_context, steps, created_at
		FROM workflows
		WHERE (? = '' OR guest_id = ?)
		ORDER BY created_at DESC, id DESC
	`
	args := []any{guestID, guestID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.WorkflowRecord{}
	for rows.Next() {
		var record store.WorkflowRecord
		var location sql.NullString
		var steps, createdAt string
		if err := rows.Scan(&record.ID, &record.GuestID, &record.Goal, &record.Language, &record.ConfidenceScore, &location, &steps, &createdAt); err != nil {
			return nil, err
		}
		record.CreatedAt = parseTime(createdAt)
		if location.Valid && location.String != "" {
			record.LocationContext = &workflow.LocationContext{}
			if err := json.Unmarshal([]byte(location.String), record.LocationContext); err != nil {
				return nil, fmt.Errorf("decode workflow %s: %w", record.ID, err)
			}
		}
		record.Steps = []workflow.Step{}
		if err := json.Unmarshal([]byte(steps), &record.Steps); err != nil {
			return nil, fmt.Errorf("decode workflow %s: %w", record.ID, err)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *SQLiteStore) DeleteWorkflow(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) GetProfile(ctx context.Context, guestID string) (*store.GuestProfile, error) {
	const query = `SELECT guest_id, points, level, badges, last_active FROM guest_profiles WHERE guest_id = ?`
	var profile store.GuestProfile
	var badges, lastActive string
	err := s.db.QueryRowContext(ctx, query, guestID).Scan(&profile.GuestID, &profile.Points, &profile.Level, &badges, &lastActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	profile.LastActive = parseTime(lastActive)
	profile.Badges = []store.Badge{}
	if err := json.Unmarshal([]byte(badges), &profile.Badges); err != nil {
		return nil, fmt.Errorf("decode badges for %s: %w", guestID, err)
	}
	return &profile, nil
}

func (s *SQLiteStore) UpsertProfile(ctx context.Context, profile store.GuestProfile) error {
	badges := profile.Badges
	if badges == nil {
		badges = []store.Badge{}
	}
	badgesBytes, err := json.Marshal(badges)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO guest_profiles (guest_id, points, level, badges, last_active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (guest_id) DO UPDATE SET
			points = excluded.points,
			level = excluded.level,
			badges = excluded.badges,
			last_active = excluded.last_active
	`
	_, err = s.db.ExecContext(ctx, query, profile.GuestID, profile.Points, profile.Level, string(badgesBytes), formatTime(profile.LastActive))
	return err
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func formatTime(value string) string {
	parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
	if err != nil {
		parsed = time.Now()
	}
	return parsed.UTC().Format(timeLayout)
}

func parseTime(value string) string {
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return value
	}
	return parsed.Format(time.RFC3339Nano)
}
