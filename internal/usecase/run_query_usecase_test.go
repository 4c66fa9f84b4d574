package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/price-reconciler/internal/entity"
	"github.com/user/price-reconciler/internal/repository"
)

const storedRunID = "6f1c2d7e-8a43-4b9e-9c1a-2f5e7d3b4a10"

func TestRunQuery(t *testing.T) {
	runs := &fakeRuns{
		run: &entity.Run{ID: storedRunID},
		results: []entity.ExtractionResult{
			{SKU: "A1", BasePrice: price(5000), ScrapedPrice: price(4999)},
			{SKU: "A2", BasePrice: price(5000)},
		},
	}
	q := NewRunQuery(runs)
	ctx := context.Background()

	latest, err := q.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, storedRunID, latest.ID)

	views, err := q.Results(ctx, storedRunID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.True(t, views[0].IsOpportunity)
	assert.Equal(t, int64(1), *views[0].Difference)
	assert.False(t, views[1].IsOpportunity)
	assert.Nil(t, views[1].Difference)

	_, err = q.Results(ctx, "0b6f0a52-1d8e-4c3f-a7b9-5e2d4c6f8a01")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRunQueryResults_RejectsMalformedID(t *testing.T) {
	runs := &fakeRuns{run: &entity.Run{ID: "not-a-uuid"}}
	q := NewRunQuery(runs)

	_, err := q.Results(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = q.Results(context.Background(), "42; DROP TABLE reconciliation_runs")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRunQueryDisabled(t *testing.T) {
	q := NewRunQuery(nil)
	_, err := q.Latest(context.Background())
	assert.ErrorIs(t, err, ErrHistoryDisabled)
	_, err = q.Results(context.Background(), "x")
	assert.ErrorIs(t, err, ErrHistoryDisabled)
}
