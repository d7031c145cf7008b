package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/sujithputta02/LifeFlow-AI/internal/store"
	"github.com/sujithputta02/LifeFlow-AI/internal/workflow"
)

type PostgresStore struct {
	db *sql.DB
}

var openDB = sql.Open

func New(conn string) (*PostgresStore, error) {
	db, err := openDB("pgx", conn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := verifySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func verifySchema(ctx context.Context, db *sql.DB) error {
	required := []string{"workflows", "guest_profiles"}
	for _, table := range required {
		var regclass sql.NullString
		if err := db.QueryRowContext(ctx, "SELECT to_regclass($1)", fmt.Sprintf("public.%s", table)).Scan(&regclass); err != nil {
			return err
		}
		if !regclass.Valid {
			return fmt.Errorf("database schema missing: %s table not found (run migrations/001_init.sql)", table)
		}
	}
	return nil
}

func (p *PostgresStore) SaveWorkflow(ctx context.Context, record store.WorkflowRecord) error {
	stepsBytes, err := json.Marshal(stepsOrEmpty(record.Steps))
	if err != nil {
		return err
	}
	var locationBytes []byte
	if record.LocationContext != nil {
		if locationBytes, err = json.Marshal(record.LocationContext); err != nil {
			return err
		}
	}
	const query = `
		INSERT INTO workflows (
			id,
			guest_id,
			goal,
			language,
			confidence_score,
			location_context,
			steps,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id)
		DO UPDATE SET
			goal = EXCLUDED.goal,
			language = EXCLUDED.language,
			confidence_score = EXCLUDED.confidence_score,
			location_context = EXCLUDED.location_context,
			steps = EXCLUDED.steps
	`
	_, err = p.db.ExecContext(
		ctx,
		query,
		record.ID,
		record.GuestID,
		record.Goal,
		nullString(record.Language),
		record.ConfidenceScore,
		nullBytes(locationBytes),
		stepsBytes,
		parseTimestampValue(record.CreatedAt),
	)
	return err
}

func (p *PostgresStore) ListWorkflows(ctx context.Context, guestID string, limit int) ([]store.WorkflowRecord, error) {
	query := `
		SELECT id, guest_id, goal, COALESCE(language, ''), confidence_score, location_context, steps, created_at
		FROM workflows
		WHERE ($1 = '' OR guest_id = $1)
		ORDER BY created_at DESC, id DESC
	`
	args := []any{guestID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.WorkflowRecord{}
	for rows.Next() {
		var createdAt time.Time
		var locationBytes, stepsBytes []byte
		var record store.WorkflowRecord
		if err := rows.Scan(&record.ID, &record.GuestID, &record.Goal, &record.Language, &record.ConfidenceScore, &locationBytes, &stepsBytes, &createdAt); err != nil {
			return nil, err
		}
		record.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
		if err := decodeWorkflowColumns(&record, locationBytes, stepsBytes); err != nil {
			return nil, fmt.Errorf("decode workflow %s: %w", record.ID, err)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *PostgresStore) DeleteWorkflow(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	return err
}

func (p *PostgresStore) GetProfile(ctx context.Context, guestID string) (*store.GuestProfile, error) {
	const query = `
		SELECT guest_id, points, level, badges, last_active
		FROM guest_profiles
		WHERE guest_id = $1
	`
	var lastActive time.Time
	var badgesBytes []byte
	var profile store.GuestProfile
	err := p.db.QueryRowContext(ctx, query, guestID).Scan(&profile.GuestID, &profile.Points, &profile.Level, &badgesBytes, &lastActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	profile.LastActive = lastActive.UTC().Format(time.RFC3339Nano)
	if profile.Badges, err = decodeBadges(badgesBytes); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (p *PostgresStore) UpsertProfile(ctx context.Context, profile store.GuestProfile) error {
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
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (guest_id)
		DO UPDATE SET
			points = EXCLUDED.points,
			level = EXCLUDED.level,
			badges = EXCLUDED.badges,
			last_active = EXCLUDED.last_active
	`
	_, err = p.db.ExecContext(ctx, query, profile.GuestID, profile.Points, profile.Level, badgesBytes, parseTimestampValue(profile.LastActive))
	return err
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func decodeWorkflowColumns(record *store.WorkflowRecord, locationBytes, stepsBytes []byte) error {
	if len(locationBytes) > 0 && string(locationBytes) != "null" {
		location := workflow.LocationContext{}
		if err := json.Unmarshal(locationBytes, &location); err != nil {
			return err
		}
		record.LocationContext = &location
	}
	steps := []workflow.Step{}
	if len(stepsBytes) > 0 {
		if err := json.Unmarshal(stepsBytes, &steps); err != nil {
			return err
		}
	}
	record.Steps = steps
	return nil
}

func decodeBadges(raw []byte) ([]store.Badge, error) {
	badges := []store.Badge{}
	if len(raw) == 0 {
		return badges, nil
	}
	if err := json.Unmarshal(raw, &badges); err != nil {
		return nil, err
	}
	return badges, nil
}

func stepsOrEmpty(steps []workflow.Step) []workflow.Step {
	if steps == nil {
		return []workflow.Step{}
	}
	return steps
}

func parseTimestampValue(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
	if err != nil {
		return time.Now().UTC()
	}
	return parsed.UTC()
}

func nullString(value string) any {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return value
}

func nullBytes(value []byte) any {
	if len(value) == 0 {
		return nil
	}
	return value
}
