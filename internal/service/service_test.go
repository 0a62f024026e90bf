package service

import (
	"context"
	"sync"
	"time"

	"github.com/spacebook/reservation-core/internal/model"
	"github.com/spacebook/reservation-core/internal/repository"
)

// recorder is a Notifier that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) Publish(_ context.Context, ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) named(name string) []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Event
	for _, ev := range r.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fixture struct {
	store  *repository.MemoryStore
	events *recorder
	clock  *fixedClock
	res    *ReservationService
	wd     *WithdrawalService

	owner    model.User
	customer model.User
	space    model.Space
}

func newFixture(now time.Time) *fixture {
	store := repository.NewMemoryStore()
	events := &recorder{}
	clock := &fixedClock{now: now}
	f := &fixture{store: store, events: events, clock: clock}
	f.owner = store.PutUser(model.User{Email: "owner@example.com", Name: "Owner"})
	f.customer = store.PutUser(model.User{Email: "guest@example.com", Name: "Guest"})
	f.space = store.PutSpace(model.Space{UserID: f.owner.ID, Title: "Studio A", PricePerHour: "25.00"})

	opts := []Option{WithClock(clock.Now), WithLocation(time.UTC)}
	f.res = NewReservationService(store.Reservations(), store.Spaces(), store.Reviews(), events, opts...)
	f.wd = NewWithdrawalService(store.Users(), store.Spaces(), store.Reservations(), store.Payments(), nil, events, opts...)
	return f
}

func (f *fixture) put(state model.State, arrival, leave time.Time, price string) model.Reservation {
	return f.store.PutReservation(model.Reservation{
		SpaceID:     f.space.ID,
		UserID:      f.customer.ID,
		ArrivalDate: arrival.Format("2006-01-02"),
		ArrivalTime: arrival.Format("15:04"),
		LeaveDate:   leave.Format("2006-01-02"),
		LeaveTime:   leave.Format("15:04"),
		TotalPrice:  price,
		State:       state,
	})
}

func (f *fixture) get(id uint64) *model.Reservation {
	r, err := f.store.Reservations().GetByID(context.Background(), id)
	if err != nil {
		panic(err)
	}
	return r
}
