// Package sweeper advances reservations whose arrival or leave time has
// passed: confirmed reservations become reserved at arrival and reserved
// reservations become completed at leave.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spacebook/reservation-core/internal/metrics"
	"github.com/spacebook/reservation-core/internal/model"
	"github.com/spacebook/reservation-core/internal/service"
)

// DefaultWorkers is the number of reservations advanced in parallel.
const DefaultWorkers = 4

type reservationLister interface {
	ListByState(ctx context.Context, state model.State) ([]*model.Reservation, error)
}

type reservationAdvancer interface {
	Advance(ctx context.Context, res *model.Reservation, to model.State) (*model.Reservation, error)
}

// Result summarises one pass.
type Result struct {
	Reserved  int // confirmed -> reserved
	Completed int // reserved -> completed
	Skipped   int // not due yet
	Failed    int
}

type Sweeper struct {
	store   reservationLister
	engine  reservationAdvancer
	now     func() time.Time
	loc     *time.Location
	workers int
	logger  *zap.Logger
}

func New(store reservationLister, engine reservationAdvancer, loc *time.Location, workers int, logger *zap.Logger) *Sweeper {
	if loc == nil {
		loc = time.UTC
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		store:   store,
		engine:  engine,
		now:     time.Now,
		loc:     loc,
		workers: workers,
		logger:  logger,
	}
}

// SetClock overrides the wall clock.
func (s *Sweeper) SetClock(now func() time.Time) { s.now = now }

type phase struct {
	name  string
	from  model.State
	to    model.State
	due   func(r *model.Reservation, loc *time.Location) (time.Time, error)
	count func(*Result) *int
}

var phases = []phase{
	{
		name:  "arrival",
		from:  model.StateConfirmed,
		to:    model.StateReserved,
		due:   func(r *model.Reservation, loc *time.Location) (time.Time, error) { return r.ArrivalAt(loc) },
		count: func(res *Result) *int { return &res.Reserved },
	},
	{
		name:  "leave",
		from:  model.StateReserved,
		to:    model.StateCompleted,
		due:   func(r *model.Reservation, loc *time.Location) (time.Time, error) { return r.LeaveAt(loc) },
		count: func(res *Result) *int { return &res.Completed },
	},
}

// Run makes one pass.  The phases run in order, and each loads its
// reservations only when it starts, so a reservation whose whole range has
// elapsed completes in a single pass and a second pass finds nothing to
// do.  Errors on individual reservations are logged and counted; Run only
// fails when a phase cannot load its reservations.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	var result Result
	now := s.now()
	for _, p := range phases {
		advanced, skipped, failed, err := s.runPhase(ctx, p, now)
		*p.count(&result) += advanced
		result.Skipped += skipped
		result.Failed += failed
		if err != nil {
			return result, err
		}
	}
	s.logger.Info("sweep finished",
		zap.Int("reserved", result.Reserved),
		zap.Int("completed", result.Completed),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *Sweeper) runPhase(ctx context.Context, p phase, now time.Time) (advanced, skipped, failed int, err error) {
	list, err := s.store.ListByState(ctx, p.from)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("list %s reservations: %w", p.from, err)
	}

	var nAdvanced, nSkipped, nFailed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, r := range list {
		r := r
		g.Go(func() error {
			switch s.advance(gctx, p, r, now) {
			case outcomeAdvanced:
				nAdvanced.Add(1)
			case outcomeSkipped:
				nSkipped.Add(1)
			default:
				nFailed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(nAdvanced.Load()), int(nSkipped.Load()), int(nFailed.Load()), ctx.Err()
}

type outcome int

const (
	outcomeAdvanced outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (s *Sweeper) advance(ctx context.Context, p phase, r *model.Reservation, now time.Time) outcome {
	log := s.logger.With(zap.Uint64("reservation_id", r.ID), zap.String("phase", p.name))

	at, err := p.due(r, s.loc)
	if err != nil {
		metrics.SweepReservationErrors.WithLabelValues(p.name, "bad_time").Inc()
		log.Error("cannot read reservation time", zap.Error(err))
		return outcomeFailed
	}
	if now.Before(at) {
		return outcomeSkipped
	}
	if ctx.Err() != nil {
		return outcomeFailed
	}
	if _, err := s.engine.Advance(ctx, r, p.to); err != nil {
		reason := "store"
		if errors.Is(err, service.ErrConcurrencyConflict) {
			reason = "raced"
		}
		metrics.SweepReservationErrors.WithLabelValues(p.name, reason).Inc()
		log.Warn("cannot advance reservation", zap.String("to", string(p.to)), zap.Error(err))
		return outcomeFailed
	}
	return outcomeAdvanced
}
