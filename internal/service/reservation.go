package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spacebook/reservation-core/internal/metrics"
	"github.com/spacebook/reservation-core/internal/model"
	"github.com/spacebook/reservation-core/internal/repository"
)

// Actor is the caller of a lifecycle operation.  System marks the
// time-driven sweeper; otherwise UserID is the authenticated user.
type Actor struct {
	UserID uint64
	System bool
}

// SystemActor is the actor used by the sweeper.
var SystemActor = Actor{System: true}

// Option configures the services in this package.
type Option func(*options)

type options struct {
	now func() time.Time
	loc *time.Location
	log *zap.Logger
}

func defaultOptions() options {
	return options{
		now: func() time.Time { return time.Now().UTC() },
		loc: time.UTC,
		log: zap.NewNop(),
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithLocation sets the location arrival and leave times are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// ReservationService owns the reservation state machine.  Every state
// change, whether requested by a client or by the sweeper, goes through
// apply, which validates the edge against model.FindEdge, persists it with
// a conditional write and emits a reservationUpdated event.
type ReservationService struct {
	reservations ReservationStore
	spaces       SpaceStore
	reviews      ReviewStore
	notifier     Notifier
	opts         options
}

func NewReservationService(
	reservations ReservationStore,
	spaces SpaceStore,
	reviews ReviewStore,
	notifier Notifier,
	opts ...Option,
) *ReservationService {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &ReservationService{
		reservations: reservations,
		spaces:       spaces,
		reviews:      reviews,
		notifier:     notifier,
		opts:         o,
	}
}

// Location returns the location reservation times are interpreted in.
func (s *ReservationService) Location() *time.Location { return s.opts.loc }

// CreateInput is the client supplied part of a new reservation.
type CreateInput struct {
	SpaceID     uint64
	UserID      uint64 // only honoured for owner-created reservations
	ArrivalDate string
	ArrivalTime string
	LeaveDate   string
	LeaveTime   string
}

// Create books a space for userID.  The reservation starts pending until
// the space owner confirms it.
func (s *ReservationService) Create(ctx context.Context, userID uint64, in CreateInput) (*model.Reservation, error) {
	return s.create(ctx, userID, in, false)
}

// CreateCustom lets a space owner book their own space on behalf of a
// walk-in customer.  The reservation is confirmed immediately.  When
// in.UserID is zero the owner is recorded as the booking user.
func (s *ReservationService) CreateCustom(ctx context.Context, ownerID uint64, in CreateInput) (*model.Reservation, error) {
	return s.create(ctx, ownerID, in, true)
}

func (s *ReservationService) create(ctx context.Context, callerID uint64, in CreateInput, custom bool) (*model.Reservation, error) {
	log := s.opts.log.With(zap.Uint64("user_id", callerID), zap.Uint64("space_id", in.SpaceID))
	if in.SpaceID == 0 {
		return nil, validationf("spaceId is required.")
	}
	arrival, err := model.CombineInstant(in.ArrivalDate, in.ArrivalTime, s.opts.loc)
	if err != nil {
		return nil, validationf("Invalid arrival date/time: %v.", err)
	}
	leave, err := model.CombineInstant(in.LeaveDate, in.LeaveTime, s.opts.loc)
	if err != nil {
		return nil, validationf("Invalid leave date/time: %v.", err)
	}
	if !leave.After(arrival) {
		return nil, validationf("Leave time must be after arrival time.")
	}
	now := s.opts.now()
	if custom {
		if !leave.After(now) {
			return nil, validationf("Leave time must be in the future.")
		}
	} else if arrival.Before(now) {
		return nil, validationf("Arrival time must be in the future.")
	}

	space, err := s.spaces.GetByID(ctx, in.SpaceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSpaceNotFound
		}
		return nil, fmt.Errorf("load space: %w", err)
	}

	state := model.StatePending
	bookedBy := callerID
	if custom {
		if space.UserID != callerID {
			return nil, ErrNotSpaceOwner
		}
		state = model.StateConfirmed
		if in.UserID != 0 {
			bookedBy = in.UserID
		}
	}

	if err := s.checkAvailability(ctx, space.ID, arrival, leave); err != nil {
		return nil, err
	}

	price, err := priceFor(space, arrival, leave)
	if err != nil {
		return nil, fmt.Errorf("price space %d: %w", space.ID, err)
	}

	res := &model.Reservation{
		SpaceID:     space.ID,
		UserID:      bookedBy,
		ArrivalDate: strings.TrimSpace(in.ArrivalDate),
		ArrivalTime: strings.TrimSpace(in.ArrivalTime),
		LeaveDate:   strings.TrimSpace(in.LeaveDate),
		LeaveTime:   strings.TrimSpace(in.LeaveTime),
		TotalPrice:  price,
		State:       state,
	}
	if err := s.reservations.Create(ctx, res); err != nil {
		return nil, fmt.Errorf("create reservation: %w", err)
	}

	log.Info("reservation created",
		zap.Uint64("reservation_id", res.ID),
		zap.String("state", string(res.State)),
		zap.String("total_price", res.TotalPrice),
		zap.Bool("custom", custom),
	)
	s.publish(ctx, model.EventReservationCreated, model.ReservationChange{
		Message:       "Reservation created",
		ReservationID: res.ID,
		NewState:      res.State,
		Actor:         actorKindForCreate(custom),
		Reservation:   res,
	})
	return res, nil
}

func actorKindForCreate(custom bool) model.ActorKind {
	if custom {
		return model.ActorOwner
	}
	return model.ActorUser
}

// checkAvailability rejects a range that overlaps an active reservation of
// the same space.  Reservations with unreadable times are ignored here;
// the sweeper reports them.
func (s *ReservationService) checkAvailability(ctx context.Context, spaceID uint64, arrival, leave time.Time) error {
	existing, err := s.reservations.ListBySpace(ctx, spaceID)
	if err != nil {
		return fmt.Errorf("list space reservations: %w", err)
	}
	for _, r := range existing {
		if r.State.Terminal() {
			continue
		}
		a, errA := r.ArrivalAt(s.opts.loc)
		l, errL := r.LeaveAt(s.opts.loc)
		if errA != nil || errL != nil {
			continue
		}
		if model.Overlaps(arrival, leave, a, l) {
			return ErrSlotTaken
		}
	}
	return nil
}

// priceFor charges the space's hourly rate pro rata by minute, rounded to
// cents.
func priceFor(space *model.Space, arrival, leave time.Time) (string, error) {
	rate, err := parseAmount(space.PricePerHour)
	if err != nil {
		return "", fmt.Errorf("invalid pricePerHour %q: %w", space.PricePerHour, err)
	}
	minutes := decimal.NewFromInt(int64(leave.Sub(arrival) / time.Minute))
	return formatAmount(rate.Mul(minutes).Div(decimal.NewFromInt(60)).Round(2)), nil
}

// Confirm moves a pending reservation to confirmed.  Only the space owner
// may confirm.
func (s *ReservationService) Confirm(ctx context.Context, id uint64, actor Actor) (*model.Reservation, error) {
	return s.Transition(ctx, id, model.StateConfirmed, actor)
}

// Cancel cancels a pending or confirmed reservation.
func (s *ReservationService) Cancel(ctx context.Context, id uint64, actor Actor) (*model.Reservation, error) {
	return s.Transition(ctx, id, model.StateCancelled, actor)
}

// MarkReserved is the client-facing request to mark a reservation as
// reserved.  Clients may not drive this edge, so it only ever succeeds
// for the system actor.
func (s *ReservationService) MarkReserved(ctx context.Context, id uint64, actor Actor) (*model.Reservation, error) {
	return s.Transition(ctx, id, model.StateReserved, actor)
}

// Transition loads the reservation and applies the requested state change
// on behalf of actor.
func (s *ReservationService) Transition(ctx context.Context, id uint64, to model.State, actor Actor) (*model.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("load reservation: %w", err)
	}
	return s.apply(ctx, res, to, actor)
}

// Advance applies a system-driven transition to a reservation the caller
// has already loaded.  It is the sweeper's entry point.
func (s *ReservationService) Advance(ctx context.Context, res *model.Reservation, to model.State) (*model.Reservation, error) {
	return s.apply(ctx, res, to, SystemActor)
}

func (s *ReservationService) apply(ctx context.Context, res *model.Reservation, to model.State, actor Actor) (*model.Reservation, error) {
	kinds, err := s.actorKinds(ctx, res, actor)
	if err != nil {
		return nil, err
	}
	if len(kinds) == 0 {
		return nil, ErrNotParticipant
	}

	edge, ok := model.FindEdge(res.State, to)
	if !ok {
		return nil, invalidTransition(res.State, to)
	}
	if edge.SystemOnly() && !actor.System {
		return nil, ErrSystemTransition
	}
	kind, ok := pickKind(edge, kinds)
	if !ok {
		if to == model.StateConfirmed {
			return nil, ErrNotSpaceOwner
		}
		return nil, ErrNotParticipant
	}

	if to == model.StateCancelled && kind == model.ActorUser {
		if arrival, err := res.ArrivalAt(s.opts.loc); err == nil && !s.opts.now().Before(arrival) {
			return nil, ErrArrivalPassed
		}
	}

	from := res.State
	if err := s.reservations.UpdateState(ctx, res.ID, from, to); err != nil {
		switch {
		case errors.Is(err, repository.ErrStateConflict):
			return nil, ErrReservationRaced
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("update reservation %d: %w", res.ID, err)
	}

	updated := *res
	updated.State = to
	updated.UpdatedAt = s.opts.now()

	metrics.ReservationTransitions.WithLabelValues(string(from), string(to), string(kind)).Inc()
	s.opts.log.Info("reservation transitioned",
		zap.Uint64("reservation_id", res.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor", string(kind)),
		zap.Uint64("user_id", actor.UserID),
	)
	s.publish(ctx, model.EventReservationUpdated, model.ReservationChange{
		Message:       "Reservation status updated",
		ReservationID: res.ID,
		OldState:      from,
		NewState:      to,
		Actor:         kind,
		Reservation:   &updated,
	})
	return &updated, nil
}

// actorKinds returns the roles actor holds on res.  A user may be both the
// booking user and the space owner.
func (s *ReservationService) actorKinds(ctx context.Context, res *model.Reservation, actor Actor) ([]model.ActorKind, error) {
	if actor.System {
		return []model.ActorKind{model.ActorSystem}, nil
	}
	var kinds []model.ActorKind
	if res.UserID == actor.UserID {
		kinds = append(kinds, model.ActorUser)
	}
	space, err := s.spaces.GetByID(ctx, res.SpaceID)
	switch {
	case err == nil:
		if space.UserID == actor.UserID {
			kinds = append(kinds, model.ActorOwner)
		}
	case errors.Is(err, repository.ErrNotFound):
	default:
		return nil, fmt.Errorf("load space: %w", err)
	}
	return kinds, nil
}

// pickKind chooses the role used for an edge.  Owner rights win over user
// rights so an owner is not held to the arrival cut-off.
func pickKind(edge model.Edge, kinds []model.ActorKind) (model.ActorKind, bool) {
	for _, want := range []model.ActorKind{model.ActorSystem, model.ActorOwner, model.ActorUser} {
		for _, k := range kinds {
			if k == want && edge.Allows(k) {
				return k, true
			}
		}
	}
	return "", false
}

// Get returns a reservation visible to userID (its booking user or the
// space owner).
func (s *ReservationService) Get(ctx context.Context, id uint64, userID uint64) (*model.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("load reservation: %w", err)
	}
	kinds, err := s.actorKinds(ctx, res, Actor{UserID: userID})
	if err != nil {
		return nil, err
	}
	if len(kinds) == 0 {
		return nil, ErrNotParticipant
	}
	return res, nil
}

// ListAll returns every reservation.
func (s *ReservationService) ListAll(ctx context.Context) ([]*model.Reservation, error) {
	return s.reservations.ListAll(ctx)
}

// ListBySpace returns the reservations of an existing space.
func (s *ReservationService) ListBySpace(ctx context.Context, spaceID uint64) ([]*model.Reservation, error) {
	if _, err := s.spaces.GetByID(ctx, spaceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSpaceNotFound
		}
		return nil, fmt.Errorf("load space: %w", err)
	}
	return s.reservations.ListBySpace(ctx, spaceID)
}

// ListForUser returns the reservations booked by userID.
func (s *ReservationService) ListForUser(ctx context.Context, userID uint64) ([]*model.Reservation, error) {
	return s.reservations.ListByUser(ctx, userID)
}

// ListForOwner returns the reservations made on spaces owned by ownerID.
func (s *ReservationService) ListForOwner(ctx context.Context, ownerID uint64) ([]*model.Reservation, error) {
	spaces, err := s.spaces.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list spaces: %w", err)
	}
	return s.reservations.ListBySpaces(ctx, spaceIDs(spaces))
}

// ReviewInput is a rating left on a completed reservation.
type ReviewInput struct {
	ReservationID uint64
	Rating        int
	Comment       string
}

// PostReview records the booking user's review of a completed
// reservation.  Each reservation can be reviewed once.
func (s *ReservationService) PostReview(ctx context.Context, userID uint64, in ReviewInput) (*model.Review, error) {
	if in.ReservationID == 0 {
		return nil, validationf("reservationId is required.")
	}
	if in.Rating < 1 || in.Rating > 5 {
		return nil, validationf("rating must be between 1 and 5.")
	}
	res, err := s.reservations.GetByID(ctx, in.ReservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("load reservation: %w", err)
	}
	if res.UserID != userID {
		return nil, ErrNotParticipant
	}
	if res.State != model.StateCompleted {
		return nil, ErrReviewNotAllowed
	}
	rv := &model.Review{
		ReservationID: res.ID,
		UserID:        userID,
		SpaceID:       res.SpaceID,
		Rating:        in.Rating,
		Comment:       strings.TrimSpace(in.Comment),
	}
	if err := s.reviews.Create(ctx, rv); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyReviewed
		}
		return nil, fmt.Errorf("create review: %w", err)
	}
	s.opts.log.Info("review posted", zap.Uint64("reservation_id", res.ID), zap.Int("rating", rv.Rating))
	return rv, nil
}

// ListReviews returns the reviews left on an existing space.
func (s *ReservationService) ListReviews(ctx context.Context, spaceID uint64) ([]*model.Review, error) {
	if _, err := s.spaces.GetByID(ctx, spaceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSpaceNotFound
		}
		return nil, fmt.Errorf("load space: %w", err)
	}
	return s.reviews.ListBySpace(ctx, spaceID)
}

func (s *ReservationService) publish(ctx context.Context, name string, data any) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(ctx, model.Event{
		ID:         uuid.NewString(),
		Name:       name,
		OccurredAt: s.opts.now(),
		Data:       data,
	})
}

func spaceIDs(spaces []*model.Space) []uint64 {
	ids := make([]uint64, 0, len(spaces))
	for _, sp := range spaces {
		ids = append(ids, sp.ID)
	}
	return ids
}
