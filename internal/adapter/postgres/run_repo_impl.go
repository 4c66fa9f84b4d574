package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/user/price-reconciler/internal/entity"
	"github.com/user/price-reconciler/internal/repository"
)

//go:embed schema.sql
var schemaSQL string

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var resultColumns = []string{
	"run_id", "position", "sku", "product_name", "base_price", "scraped_price",
	"process_timestamp", "source", "url", "status", "strategy", "failure_reason",
}

// RunRepoImpl provides a concrete implementation for the RunRepository interface using PostgreSQL.
type RunRepoImpl struct {
	db DB
}

// NewRunRepo creates a new instance of RunRepoImpl.
func NewRunRepo(db DB) *RunRepoImpl {
	return &RunRepoImpl{db: db}
}

// EnsureSchema creates the run tables when they do not exist yet.
func (r *RunRepoImpl) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

// Save inserts the run row and bulk-copies its results in one transaction.
func (r *RunRepoImpl) Save(ctx context.Context, run *entity.Run, results []entity.ExtractionResult) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}

	query := `
		INSERT INTO reconciliation_runs (id, source, started_at, finished_at, total, priced, opportunities, failed, report_name, report_link)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
	`
	_, err = tx.Exec(ctx, query,
		run.ID,
		run.Source,
		run.StartedAt,
		run.FinishedAt,
		run.Total,
		run.Priced,
		run.Opportunities,
		run.Failed,
		run.ReportName,
		run.ReportLink,
	)
	if err != nil {
		tx.Rollback(ctx) //nolint:errcheck
		return fmt.Errorf("postgres: insert run %s: %w", run.ID, err)
	}

	if len(results) > 0 {
		rows := make([][]any, len(results))
		for i, res := range results {
			rows[i] = []any{
				run.ID, i, res.SKU, res.ProductName, res.BasePrice, res.ScrapedPrice,
				res.ProcessTimestamp, res.Source, res.URL, string(res.Status), res.Strategy, res.FailureReason,
			}
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"extraction_results"}, resultColumns, pgx.CopyFromRows(rows)); err != nil {
			tx.Rollback(ctx) //nolint:errcheck
			return fmt.Errorf("postgres: copy results of run %s: %w", run.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit run %s: %w", run.ID, err)
	}
	return nil
}

// Latest retrieves the most recently started run.
func (r *RunRepoImpl) Latest(ctx context.Context) (*entity.Run, error) {
	query := `
		SELECT id, source, started_at, finished_at, total, priced, opportunities, failed, report_name, report_link
		FROM reconciliation_runs
		ORDER BY started_at DESC
		LIMIT 1;
	`
	var run entity.Run
	err := r.db.QueryRow(ctx, query).Scan(
		&run.ID,
		&run.Source,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Total,
		&run.Priced,
		&run.Opportunities,
		&run.Failed,
		&run.ReportName,
		&run.ReportLink,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: latest run: %w", err)
	}
	return &run, nil
}

// Results retrieves the results of a run in catalog order. An unknown run
// yields ErrNotFound.
func (r *RunRepoImpl) Results(ctx context.Context, runID string) ([]entity.ExtractionResult, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reconciliation_runs WHERE id = $1);`, runID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("postgres: lookup run %s: %w", runID, err)
	}
	if !exists {
		return nil, repository.ErrNotFound
	}

	query := `
		SELECT sku, product_name, base_price, scraped_price, process_timestamp, source, url, status, strategy, failure_reason
		FROM extraction_results
		WHERE run_id = $1
		ORDER BY position;
	`
	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: results of run %s: %w", runID, err)
	}
	defer rows.Close()

	results := []entity.ExtractionResult{}
	for rows.Next() {
		var res entity.ExtractionResult
		var status string
		if err := rows.Scan(
			&res.SKU,
			&res.ProductName,
			&res.BasePrice,
			&res.ScrapedPrice,
			&res.ProcessTimestamp,
			&res.Source,
			&res.URL,
			&status,
			&res.Strategy,
			&res.FailureReason,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan result: %w", err)
		}
		res.Status = entity.ItemStatus(status)
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: results of run %s: %w", runID, err)
	}
	return results, nil
}
