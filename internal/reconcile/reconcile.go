// Package reconcile compares catalog prices with scraped competitor prices.
package reconcile

import "github.com/user/price-reconciler/internal/entity"

// Classify derives the reconciliation outcome of a single result. A missing
// price on either side makes the outcome indeterminate: no difference and no
// opportunity. Equal prices are not an opportunity.
func Classify(r entity.ExtractionResult) entity.ReconciliationOutcome {
	if r.BasePrice == nil || r.ScrapedPrice == nil {
		return entity.ReconciliationOutcome{}
	}
	diff := *r.BasePrice - *r.ScrapedPrice
	return entity.ReconciliationOutcome{
		Difference:    &diff,
		IsOpportunity: *r.ScrapedPrice < *r.BasePrice,
	}
}

// Summary aggregates the outcomes of one run.
type Summary struct {
	Total         int
	Priced        int // results with a scraped price
	Opportunities int
	Indeterminate int // no difference could be computed
	Failed        int // navigation or extraction faults
}

// Summarize classifies every result and counts the outcomes.
func Summarize(results []entity.ExtractionResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.ScrapedPrice != nil {
			s.Priced++
		}
		switch r.Status {
		case entity.StatusNavigationTimeout, entity.StatusNavigationFailed, entity.StatusExtractionFailed:
			s.Failed++
		}
		out := Classify(r)
		if out.Difference == nil {
			s.Indeterminate++
		}
		if out.IsOpportunity {
			s.Opportunities++
		}
	}
	return s
}
