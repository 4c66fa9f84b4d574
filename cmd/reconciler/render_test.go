package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/user/price-reconciler/internal/entity"
	"github.com/user/price-reconciler/internal/reconcile"
	"github.com/user/price-reconciler/internal/usecase"
)

func p(v int64) *int64 { return &v }

func sampleReport() *usecase.RunReport {
	results := []entity.ExtractionResult{
		{SKU: "A1", ProductName: "Dron", BasePrice: p(10000), ScrapedPrice: p(9000), Status: entity.StatusOK},
		{SKU: "A2", ProductName: "Gimbal", BasePrice: p(8000), Status: entity.StatusNavigationTimeout},
	}
	return &usecase.RunReport{
		Run:     &entity.Run{ID: "r1", Source: "djichile", ReportLink: "https://files.example/r.xlsx"},
		Results: results,
		Summary: reconcile.Summarize(results),
	}
}

func TestRenderRunReport_OpportunitiesOnly(t *testing.T) {
	var buf bytes.Buffer
	renderRunReport(&buf, sampleReport(), false)

	out := buf.String()
	assert.Contains(t, out, "A1")
	assert.Contains(t, out, "opportunity")
	assert.NotContains(t, out, "A2")
	assert.Contains(t, out, "Report: https://files.example/r.xlsx")
}

func TestRenderRunReport_All(t *testing.T) {
	var buf bytes.Buffer
	renderRunReport(&buf, sampleReport(), true)

	out := buf.String()
	assert.Contains(t, out, "A2")
	assert.Contains(t, out, "navigation_timeout")
}

func TestRenderRunReport_NoOpportunities(t *testing.T) {
	rep := sampleReport()
	rep.Results = rep.Results[1:]
	var buf bytes.Buffer
	renderRunReport(&buf, rep, false)
	assert.Contains(t, buf.String(), "No pricing opportunities found.")
}

func TestRenderRun(t *testing.T) {
	started := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	finished := started.Add(95 * time.Second)
	var buf bytes.Buffer
	renderRun(&buf, &entity.Run{ID: "r1", Source: "djichile", StartedAt: started, FinishedAt: &finished, Opportunities: 4})

	out := buf.String()
	assert.Contains(t, out, "r1")
	assert.Contains(t, out, "2026-10-15T09:00:00Z")
	assert.Contains(t, out, "1m35s")
}

func TestRenderResults(t *testing.T) {
	var buf bytes.Buffer
	r := entity.ExtractionResult{SKU: "A2", BasePrice: p(8000), Status: entity.StatusNavigationFailed, FailureReason: "net::ERR_NAME_NOT_RESOLVED"}
	renderResults(&buf, []usecase.ResultView{{ExtractionResult: r, ReconciliationOutcome: reconcile.Classify(r)}})

	out := buf.String()
	assert.Contains(t, out, "navigation_failed")
	assert.Contains(t, out, "net::ERR_NAME_NOT_RESOLVED")
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "-", formatPrice(nil))
	assert.Equal(t, "12990", formatPrice(p(12990)))
}
