package entity

import "time"

// ItemStatus describes how the single attempt for one product ended.
type ItemStatus string

const (
	StatusOK                ItemStatus = "ok"
	StatusNotFound          ItemStatus = "not_found"
	StatusNavigationTimeout ItemStatus = "navigation_timeout"
	StatusNavigationFailed  ItemStatus = "navigation_failed"
	StatusExtractionFailed  ItemStatus = "extraction_failed"
	StatusCancelled         ItemStatus = "cancelled"
)

// ExtractionResult mirrors the `extraction_results` PostgreSQL table schema.
// One is built per ProductRecord and never modified afterwards.
type ExtractionResult struct {
	SKU              string     `json:"sku"`
	ProductName      string     `json:"product_name"`
	BasePrice        *int64     `json:"base_price"`
	ScrapedPrice     *int64     `json:"scraped_price"`
	ProcessTimestamp time.Time  `json:"process_timestamp"`
	Source           string     `json:"source"`
	URL              string     `json:"url"`
	Status           ItemStatus `json:"status"`
	Strategy         string     `json:"strategy,omitempty"`
	FailureReason    string     `json:"failure_reason,omitempty"`
}

// ReconciliationOutcome is derived from an ExtractionResult and never stored
// on its own.
type ReconciliationOutcome struct {
	Difference    *int64 `json:"difference"`
	IsOpportunity bool   `json:"is_opportunity"`
}
