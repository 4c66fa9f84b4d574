package entity

import "time"

// Run mirrors the `reconciliation_runs` PostgreSQL table schema.
type Run struct {
	ID            string     `json:"id"`
	Source        string     `json:"source"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Total         int        `json:"total"`
	Priced        int        `json:"priced"`
	Opportunities int        `json:"opportunities"`
	Failed        int        `json:"failed"`
	ReportName    string     `json:"report_name,omitempty"`
	ReportLink    string     `json:"report_link,omitempty"`
}
