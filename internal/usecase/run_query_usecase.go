package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/user/price-reconciler/internal/entity"
	"github.com/user/price-reconciler/internal/reconcile"
	"github.com/user/price-reconciler/internal/repository"
)

var ErrHistoryDisabled = errors.New("run history is not configured")

// ResultView is a stored result together with its derived outcome.
type ResultView struct {
	entity.ExtractionResult
	entity.ReconciliationOutcome
}

// RunQuery reads the run history.
type RunQuery struct {
	runs repository.RunRepository
}

// NewRunQuery accepts a nil repository; every query then returns
// ErrHistoryDisabled.
func NewRunQuery(runs repository.RunRepository) *RunQuery {
	return &RunQuery{runs: runs}
}

func (q *RunQuery) Latest(ctx context.Context) (*entity.Run, error) {
	if q.runs == nil {
		return nil, ErrHistoryDisabled
	}
	return q.runs.Latest(ctx)
}

// Results returns the stored results of runID. IDs that are not UUIDs cannot
// name a run and yield repository.ErrNotFound.
func (q *RunQuery) Results(ctx context.Context, runID string) ([]ResultView, error) {
	if q.runs == nil {
		return nil, ErrHistoryDisabled
	}
	if _, err := uuid.Parse(runID); err != nil {
		return nil, repository.ErrNotFound
	}
	results, err := q.runs.Results(ctx, runID)
	if err != nil {
		return nil, err
	}
	views := make([]ResultView, len(results))
	for i, r := range results {
		views[i] = ResultView{ExtractionResult: r, ReconciliationOutcome: reconcile.Classify(r)}
	}
	return views, nil
}
