// Package store persists finished topic reports in PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofrs/uuid"

	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/density"
	apperrors "github.com/Adithya-Monish-Kumar-K/worddensity/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS topic_reports (
    id         UUID PRIMARY KEY,
    source     TEXT NOT NULL,
    top_k      INTEGER NOT NULL,
    report     JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS topic_reports_source_created_idx
    ON topic_reports (source, created_at DESC);
`

// Store reads and writes reports. Only results are kept; phrase indexes are
// never persisted.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "report-store"),
	}
}

// EnsureSchema creates the reports table when it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating topic_reports schema: %w", err)
	}
	return nil
}

// Save assigns report an ID when it has none and inserts it.
func (s *Store) Save(ctx context.Context, report *density.Report) error {
	if report.ID == "" {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("generating report id: %w", err)
		}
		report.ID = id.String()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO topic_reports (id, source, top_k, report, created_at) VALUES ($1, $2, $3, $4, $5)`,
			report.ID, report.Source, report.TopK, data, report.CreatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("saving report for %s: %w", report.Source, err)
	}
	s.logger.Debug("report saved", "id", report.ID, "source", report.Source, "top_k", report.TopK)
	return nil
}

// Latest returns the newest report for source, or ErrReportNotFound.
func (s *Store) Latest(ctx context.Context, source string) (*density.Report, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT report FROM topic_reports WHERE source = $1 ORDER BY created_at DESC LIMIT 1`,
		source,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrReportNotFound, http.StatusNotFound, "no report stored for %s", source)
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest report: %w", err)
	}
	return decode(data)
}

// List returns up to limit reports, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*density.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT report FROM topic_reports ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	reports := make([]*density.Report, 0, limit)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning report row: %w", err)
		}
		report, err := decode(data)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating report rows: %w", err)
	}
	return reports, nil
}

func decode(data []byte) (*density.Report, error) {
	var report density.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("unmarshaling report: %w", err)
	}
	return &report, nil
}
