package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/price-reconciler/internal/entity"
	"github.com/user/price-reconciler/internal/repository"
)

func p(v int64) *int64 { return &v }

func sampleRun() (*entity.Run, []entity.ExtractionResult) {
	started := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	finished := started.Add(3 * time.Minute)
	run := &entity.Run{
		ID:            "0b9f6c1e-6b0c-4c3e-9e52-000000000001",
		Source:        "djichile",
		StartedAt:     started,
		FinishedAt:    &finished,
		Total:         2,
		Priced:        1,
		Opportunities: 1,
		ReportName:    "precios_djichile_01-05-2024_0500.xlsx",
	}
	results := []entity.ExtractionResult{
		{SKU: "A1", ProductName: "Dron", BasePrice: p(10000), ScrapedPrice: p(9000), ProcessTimestamp: started, Source: "djichile", URL: "https://x/a1", Status: entity.StatusOK, Strategy: "meta_property"},
		{SKU: "A2", ProductName: "Gimbal", BasePrice: p(5000), ProcessTimestamp: started, Source: "djichile", URL: "https://x/a2", Status: entity.StatusNotFound},
	}
	return run, results
}

func TestRunRepoSave(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	run, results := sampleRun()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reconciliation_runs").
		WithArgs(run.ID, run.Source, run.StartedAt, run.FinishedAt, 2, 1, 1, 0, run.ReportName, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"extraction_results"}, resultColumns).WillReturnResult(2)
	mock.ExpectCommit()

	repo := NewRunRepo(mock)
	require.NoError(t, repo.Save(context.Background(), run, results))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepoSaveEmptyRunSkipsCopy(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	run, _ := sampleRun()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reconciliation_runs").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, NewRunRepo(mock).Save(context.Background(), run, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepoSaveCopyFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	run, results := sampleRun()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reconciliation_runs").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"extraction_results"}, resultColumns).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = NewRunRepo(mock).Save(context.Background(), run, results)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepoLatest(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	run, _ := sampleRun()
	rows := pgxmock.NewRows([]string{"id", "source", "started_at", "finished_at", "total", "priced", "opportunities", "failed", "report_name", "report_link"}).
		AddRow(run.ID, run.Source, run.StartedAt, run.FinishedAt, 2, 1, 1, 0, run.ReportName, "https://x/r.xlsx")
	mock.ExpectQuery("SELECT (.+) FROM reconciliation_runs").WillReturnRows(rows)

	got, err := NewRunRepo(mock).Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, 1, got.Opportunities)
	assert.Equal(t, "https://x/r.xlsx", got.ReportLink)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepoLatestEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM reconciliation_runs").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err = NewRunRepo(mock).Latest(context.Background())
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepoResults(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	run, results := sampleRun()
	mock.ExpectQuery("SELECT EXISTS").WithArgs(run.ID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	rows := pgxmock.NewRows([]string{"sku", "product_name", "base_price", "scraped_price", "process_timestamp", "source", "url", "status", "strategy", "failure_reason"}).
		AddRow("A1", "Dron", p(10000), p(9000), run.StartedAt, "djichile", "https://x/a1", "ok", "meta_property", "").
		AddRow("A2", "Gimbal", p(5000), p(0), run.StartedAt, "djichile", "https://x/a2", "not_found", "", "")
	mock.ExpectQuery("FROM extraction_results").WithArgs(run.ID).WillReturnRows(rows)

	got, err := NewRunRepo(mock).Results(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, results[0].SKU, got[0].SKU)
	assert.Equal(t, int64(9000), *got[0].ScrapedPrice)
	assert.Equal(t, entity.StatusOK, got[0].Status)
	assert.Equal(t, entity.StatusNotFound, got[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepoResultsUnknownRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT EXISTS").WithArgs("nope").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	_, err = NewRunRepo(mock).Results(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS reconciliation_runs").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, NewRunRepo(mock).EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
