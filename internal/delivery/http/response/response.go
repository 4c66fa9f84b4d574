package response

import (
	"time"

	"github.com/user/price-reconciler/internal/entity"
	"github.com/user/price-reconciler/internal/usecase"
)

type TriggerRunResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	RunID   string `json:"run_id"`
}

// RunResponse is a DTO for a stored run, mirroring entity.Run
type RunResponse struct {
	ID              string     `json:"id"`
	Source          string     `json:"source"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
	Total           int        `json:"total"`
	Priced          int        `json:"priced"`
	Opportunities   int        `json:"opportunities"`
	Failed          int        `json:"failed"`
	ReportName      string     `json:"report_name,omitempty"`
	ReportLink      string     `json:"report_link,omitempty"`
}

func NewRunResponse(run *entity.Run) RunResponse {
	resp := RunResponse{
		ID:            run.ID,
		Source:        run.Source,
		StartedAt:     run.StartedAt,
		FinishedAt:    run.FinishedAt,
		Total:         run.Total,
		Priced:        run.Priced,
		Opportunities: run.Opportunities,
		Failed:        run.Failed,
		ReportName:    run.ReportName,
		ReportLink:    run.ReportLink,
	}
	if run.FinishedAt != nil {
		resp.DurationSeconds = run.FinishedAt.Sub(run.StartedAt).Seconds()
	}
	return resp
}

type RunResultsResponse struct {
	RunID   string               `json:"run_id"`
	Count   int                  `json:"count"`
	Results []usecase.ResultView `json:"results"`
}
