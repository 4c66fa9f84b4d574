package repository

import (
	"context"

	"github.com/user/price-reconciler/internal/entity"
)

// RunRepository persists completed runs and their per-item results.
type RunRepository interface {
	// Save stores the run and all of its results atomically.
	Save(ctx context.Context, run *entity.Run, results []entity.ExtractionResult) error
	// Latest returns the most recently started run, or ErrNotFound.
	Latest(ctx context.Context) (*entity.Run, error)
	// Results returns the results of a run in catalog order.
	Results(ctx context.Context, runID string) ([]entity.ExtractionResult, error)
}
