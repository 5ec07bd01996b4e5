package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"intentc/internal/domain"
)

var ErrReportNotFound = errors.New("compilation not found")

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// Store is the compile audit log.
type Store struct {
	pool *pgxpool.Pool
}

// Summary is one row of the audit log without the full report body.
type Summary struct {
	RequestID  string  `json:"request_id"`
	TerminalID string  `json:"terminal_id,omitempty"`
	Utterance  string  `json:"utterance"`
	Source     string  `json:"source"`
	Decision   string  `json:"decision"`
	Confidence float64 `json:"confidence"`
	CallCount  int     `json:"call_count"`
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS compilations (
			request_id TEXT PRIMARY KEY,
			terminal_id TEXT,
			utterance TEXT NOT NULL,
			rules_version INT NOT NULL,
			source TEXT NOT NULL DEFAULT 'rules',
			decision TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			call_count INT NOT NULL,
			total_time_ms DOUBLE PRECISION NOT NULL,
			report JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_compilations_created ON compilations(created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_compilations_terminal_created ON compilations(terminal_id, created_at DESC);`,
		`ALTER TABLE compilations ADD COLUMN IF NOT EXISTS hour_format TEXT NOT NULL DEFAULT '24h';`,
	}

	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// SaveReport records a report. Saving the same request id twice keeps the latest.
func (s *Store) SaveReport(ctx context.Context, report domain.Report) error {
	if report.RequestID == "" {
		return errors.New("report has no request id")
	}
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	hourFormat, _ := report.Meta["hour_format"].(string)
	if hourFormat == "" {
		hourFormat = string(domain.Hour24)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO compilations (request_id, terminal_id, utterance, rules_version, source, decision, confidence, call_count, total_time_ms, report, hour_format, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (request_id) DO UPDATE SET
			source = EXCLUDED.source,
			decision = EXCLUDED.decision,
			confidence = EXCLUDED.confidence,
			call_count = EXCLUDED.call_count,
			total_time_ms = EXCLUDED.total_time_ms,
			report = EXCLUDED.report
	`,
		report.RequestID,
		nullIfEmpty(report.TerminalID),
		report.Utterance,
		report.RulesVersion,
		sourceOf(report),
		report.Decision.Action,
		report.Record.Confidence,
		len(report.Record.Calls),
		report.Record.TotalTimeMS,
		body,
		hourFormat,
		report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save compilation %s: %w", report.RequestID, err)
	}
	return nil
}

// RecentReports returns the newest reports first, optionally for one terminal.
func (s *Store) RecentReports(ctx context.Context, terminalID string, limit int) ([]domain.Report, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT report
		FROM compilations
		WHERE $1::text IS NULL OR terminal_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, nullIfEmpty(terminalID), ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Report, 0, ClampLimit(limit))
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var r domain.Report
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode stored report: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetReport(ctx context.Context, requestID string) (domain.Report, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT report
		FROM compilations
		WHERE request_id=$1
	`, requestID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Report{}, ErrReportNotFound
	}
	if err != nil {
		return domain.Report{}, err
	}
	var r domain.Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.Report{}, fmt.Errorf("decode stored report: %w", err)
	}
	return r, nil
}

// ListSummaries is RecentReports without decoding the JSON bodies.
func (s *Store) ListSummaries(ctx context.Context, limit int) ([]Summary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT request_id, COALESCE(terminal_id, ''), utterance, source, decision, confidence, call_count
		FROM compilations
		ORDER BY created_at DESC
		LIMIT $1
	`, ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Summary, 0, ClampLimit(limit))
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(&sm.RequestID, &sm.TerminalID, &sm.Utterance, &sm.Source, &sm.Decision, &sm.Confidence, &sm.CallCount); err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ClampLimit maps a requested page size onto [1, 200], defaulting to 20.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}

func sourceOf(r domain.Report) string {
	if r.Record.Source == "" {
		return domain.SourceRules
	}
	return r.Record.Source
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
