// Package scheduler triggers reconciliation runs on a cron expression.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/user/price-reconciler/internal/repository"
)

// Trigger starts a run in the background.
type Trigger interface {
	Trigger(ctx context.Context) (string, error)
}

// Scheduler fires Trigger on a standard 5-field cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	parser  cron.Parser
	trigger Trigger
	logger  *zap.Logger
	loc     *time.Location
	entry   cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
}

// New builds a scheduler evaluating expressions in loc.
func New(trigger Trigger, loc *time.Location, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser), cron.WithLocation(loc), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	return &Scheduler{
		cron:    c,
		parser:  parser,
		trigger: trigger,
		logger:  logger,
		loc:     loc,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Schedule replaces the current schedule with expr.
func (s *Scheduler) Schedule(expr string) error {
	if _, err := s.parser.Parse(expr); err != nil {
		return fmt.Errorf("scheduler: invalid cron expression %q: %w", expr, err)
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	id, err := s.cron.AddFunc(expr, s.fire)
	if err != nil {
		return fmt.Errorf("scheduler: add %q: %w", expr, err)
	}
	s.entry = id
	s.logger.Info("run scheduled", zap.String("cron", expr), zap.Time("next", s.Next()))
	return nil
}

// Next returns the next activation, or the zero time when nothing is
// scheduled.
func (s *Scheduler) Next() time.Time {
	if s.entry == 0 {
		return time.Time{}
	}
	entry := s.cron.Entry(s.entry)
	if !entry.Next.IsZero() {
		return entry.Next
	}
	return entry.Schedule.Next(time.Now().In(s.loc))
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a firing in progress to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

func (s *Scheduler) fire() {
	id, err := s.trigger.Trigger(s.ctx)
	switch {
	case errors.Is(err, repository.ErrRunInProgress):
		s.logger.Info("scheduled run skipped, previous run still active")
	case err != nil:
		s.logger.Error("scheduled run could not start", zap.Error(err))
	default:
		s.logger.Info("scheduled run started", zap.String("run_id", id))
	}
}
