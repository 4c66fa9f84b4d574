package extractor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	DefaultPriceProperty  = "product:price:amount"
	DefaultCurrencyMarker = "$"
	DefaultMaxTextLen     = 18
)

// Extraction is the outcome of running the strategy chain on one page.
// Price is nil when no strategy produced a usable value.
type Extraction struct {
	Price    *int64
	Strategy string
}

// Options tunes the default strategy chain.
type Options struct {
	PriceProperty  string
	CurrencyMarker string
	MaxTextLen     int
}

// Extractor runs an ordered chain of strategies against a DOM snapshot.
type Extractor struct {
	strategies []Strategy
	logger     *zap.Logger
}

// New builds an Extractor over an explicit strategy chain.
func New(logger *zap.Logger, strategies ...Strategy) *Extractor {
	return &Extractor{strategies: strategies, logger: logger}
}

// NewDefault builds the standard chain: structured metadata, then microdata,
// then the visible-text heuristic.
func NewDefault(logger *zap.Logger, opts Options) *Extractor {
	if opts.PriceProperty == "" {
		opts.PriceProperty = DefaultPriceProperty
	}
	if opts.CurrencyMarker == "" {
		opts.CurrencyMarker = DefaultCurrencyMarker
	}
	if opts.MaxTextLen <= 0 {
		opts.MaxTextLen = DefaultMaxTextLen
	}
	return New(logger,
		MetaPropertyStrategy{Property: opts.PriceProperty},
		MicrodataStrategy{},
		VisibleTextStrategy{CurrencyMarker: opts.CurrencyMarker, MaxLen: opts.MaxTextLen},
	)
}

// Extract returns the price held by snapshot. The first strategy yielding a
// raw candidate decides the outcome; later strategies are not consulted even
// when that candidate carries no digits. Faults are logged and reported as a
// missing price.
func (e *Extractor) Extract(snapshot string) (ext Extraction) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("price extraction panicked", zap.Any("panic", r))
			ext = Extraction{}
		}
	}()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snapshot))
	if err != nil {
		e.logger.Warn("could not parse page snapshot", zap.Error(err))
		return Extraction{}
	}
	return e.ExtractDocument(doc)
}

// ExtractDocument runs the chain over an already parsed document.
func (e *Extractor) ExtractDocument(doc *goquery.Document) Extraction {
	for _, s := range e.strategies {
		candidates := s.Candidates(doc)
		if len(candidates) == 0 {
			continue
		}
		raw := candidates[0]
		price := NormalizePrice(raw)
		if price == nil {
			e.logger.Debug("price candidate has no digits",
				zap.String("strategy", s.Name()), zap.String("raw", raw))
		}
		return Extraction{Price: price, Strategy: s.Name()}
	}
	return Extraction{}
}

// String is used in log lines.
func (x Extraction) String() string {
	if x.Price == nil {
		return "not found"
	}
	return fmt.Sprintf("%d (%s)", *x.Price, x.Strategy)
}
