// Package sqlite keeps simulation run history in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-data-flood-service/internal/domain"
	_ "modernc.org/sqlite"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

//go:embed sql/*
var ddl embed.FS

// Store persists RunRecords. It implements simulation.RunStore.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("run store path not specified")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run store %s: %w", path, err)
	}
	// A single connection serialises writers.
	db.SetMaxOpenConns(1)

	schema, err := ddl.ReadFile("sql/ddl.sql")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read run store schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		db.Close()
		return nil, fmt.Errorf("create run store schema in %s: %w", path, err)
	}
	logger.Debug("run store ready", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveRun inserts or replaces a run.
func (s *Store) SaveRun(ctx context.Context, run domain.RunRecord) error {
	req, err := json.Marshal(run.Request)
	if err != nil {
		return fmt.Errorf("encode run request: %w", err)
	}
	var summary []byte
	if run.Summary != nil {
		if summary, err = json.Marshal(run.Summary); err != nil {
			return fmt.Errorf("encode run summary: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (id, created_at, duration_ns, total_nodes, flooded_nodes, request, summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UnixNano(), int64(run.Duration), run.TotalNodes, run.FloodedNodes, string(req), nullString(summary),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the newest runs first, without summaries. A non-positive
// limit selects the default page size.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, duration_ns, total_nodes, flooded_nodes, request
		 FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.RunRecord, 0)
	for rows.Next() {
		var (
			run       domain.RunRecord
			createdAt int64
			duration  int64
			req       string
		)
		if err := rows.Scan(&run.ID, &createdAt, &duration, &run.TotalNodes, &run.FloodedNodes, &req); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.CreatedAt = time.Unix(0, createdAt).UTC()
		run.Duration = time.Duration(duration)
		if err := json.Unmarshal([]byte(req), &run.Request); err != nil {
			return nil, fmt.Errorf("decode request of run %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run with its summary.
func (s *Store) GetRun(ctx context.Context, id string) (domain.RunRecord, error) {
	var (
		run       domain.RunRecord
		createdAt int64
		duration  int64
		req       string
		summary   sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, duration_ns, total_nodes, flooded_nodes, request, summary
		 FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &createdAt, &duration, &run.TotalNodes, &run.FloodedNodes, &req, &summary)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RunRecord{}, fmt.Errorf("run %s: %w", id, domain.ErrRunNotFound)
	}
	if err != nil {
		return domain.RunRecord{}, fmt.Errorf("get run %s: %w", id, err)
	}

	run.CreatedAt = time.Unix(0, createdAt).UTC()
	run.Duration = time.Duration(duration)
	if err := json.Unmarshal([]byte(req), &run.Request); err != nil {
		return domain.RunRecord{}, fmt.Errorf("decode request of run %s: %w", id, err)
	}
	if summary.Valid {
		var fs domain.FloodSummary
		if err := json.Unmarshal([]byte(summary.String), &fs); err != nil {
			return domain.RunRecord{}, fmt.Errorf("decode summary of run %s: %w", id, err)
		}
		run.Summary = &fs
	}
	return run, nil
}

func nullString(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
