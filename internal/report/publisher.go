package report

import (
	"bytes"
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/user/price-reconciler/internal/repository"
)

// Publication describes a delivered report.
type Publication struct {
	Name string
	Link string
}

// Publisher replaces the previous report in the object store with a new one.
type Publisher struct {
	store    repository.ObjectStore
	prefix   string
	location *time.Location
	logger   *zap.Logger
}

func NewPublisher(store repository.ObjectStore, prefix string, loc *time.Location, logger *zap.Logger) *Publisher {
	if loc == nil {
		loc = time.UTC
	}
	return &Publisher{store: store, prefix: prefix, location: loc, logger: logger}
}

// FileName names the report of the run started at stamp.
func (p *Publisher) FileName(stamp time.Time) string {
	return p.prefix + "_" + stamp.In(p.location).Format("02-01-2006_1504") + ".xlsx"
}

// Publish deletes every stored report sharing the prefix, stores data under a
// name derived from stamp and returns its retrieval link.
func (p *Publisher) Publish(ctx context.Context, stamp time.Time, data []byte) (*Publication, error) {
	old, err := p.store.List(ctx, p.prefix)
	if err != nil {
		return nil, eris.Wrap(err, "report: list previous reports")
	}
	if len(old) == 0 {
		p.logger.Info("no previous reports to remove", zap.String("prefix", p.prefix))
	}
	for _, name := range old {
		if err := p.store.Delete(ctx, name); err != nil {
			return nil, eris.Wrapf(err, "report: delete %s", name)
		}
		p.logger.Info("previous report removed", zap.String("name", name))
	}

	name := p.FileName(stamp)
	if err := p.store.Put(ctx, name, bytes.NewReader(data)); err != nil {
		return nil, eris.Wrapf(err, "report: upload %s", name)
	}

	pub := &Publication{Name: name, Link: p.store.Link(name)}
	p.logger.Info("report published", zap.String("name", pub.Name), zap.String("link", pub.Link))
	return pub, nil
}
