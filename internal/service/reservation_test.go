package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacebook/reservation-core/internal/model"
)

var t0 = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

func TestCreate_PricesAndStartsPending(t *testing.T) {
	f := newFixture(t0)
	res, err := f.res.Create(context.Background(), f.customer.ID, CreateInput{
		SpaceID:     f.space.ID,
		ArrivalDate: "2024-01-02", ArrivalTime: "10:00",
		LeaveDate: "2024-01-02", LeaveTime: "12:30",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatePending, res.State)
	assert.Equal(t, "62.50", res.TotalPrice)
	assert.Equal(t, f.customer.ID, res.UserID)
	assert.Len(t, f.events.named(model.EventReservationCreated), 1)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t0)
	cases := map[string]CreateInput{
		"missing space": {ArrivalDate: "2024-01-02", ArrivalTime: "10:00", LeaveDate: "2024-01-02", LeaveTime: "11:00"},
		"bad date":      {SpaceID: f.space.ID, ArrivalDate: "02/01/2024", ArrivalTime: "10:00", LeaveDate: "2024-01-02", LeaveTime: "11:00"},
		"leave first":   {SpaceID: f.space.ID, ArrivalDate: "2024-01-02", ArrivalTime: "10:00", LeaveDate: "2024-01-02", LeaveTime: "09:00"},
		"in the past":   {SpaceID: f.space.ID, ArrivalDate: "2023-12-31", ArrivalTime: "10:00", LeaveDate: "2023-12-31", LeaveTime: "11:00"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.res.Create(context.Background(), f.customer.ID, in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCreate_UnknownSpace(t *testing.T) {
	f := newFixture(t0)
	_, err := f.res.Create(context.Background(), f.customer.ID, CreateInput{
		SpaceID: 999, ArrivalDate: "2024-01-02", ArrivalTime: "10:00", LeaveDate: "2024-01-02", LeaveTime: "11:00",
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreate_RejectsOverlap(t *testing.T) {
	f := newFixture(t0)
	f.put(model.StateConfirmed, t0.Add(26*time.Hour), t0.Add(28*time.Hour), "50.00")
	f.put(model.StateCancelled, t0.Add(30*time.Hour), t0.Add(32*time.Hour), "50.00")

	_, err := f.res.Create(context.Background(), f.customer.ID, CreateInput{
		SpaceID: f.space.ID, ArrivalDate: "2024-01-02", ArrivalTime: "11:00", LeaveDate: "2024-01-02", LeaveTime: "12:00",
	})
	assert.ErrorIs(t, err, ErrConflict)

	// cancelled reservations do not hold the slot
	_, err = f.res.Create(context.Background(), f.customer.ID, CreateInput{
		SpaceID: f.space.ID, ArrivalDate: "2024-01-02", ArrivalTime: "14:00", LeaveDate: "2024-01-02", LeaveTime: "16:00",
	})
	assert.NoError(t, err)
}

func TestCreateCustom(t *testing.T) {
	f := newFixture(t0)
	in := CreateInput{SpaceID: f.space.ID, UserID: f.customer.ID,
		ArrivalDate: "2024-01-01", ArrivalTime: "07:00", LeaveDate: "2024-01-01", LeaveTime: "09:00"}

	_, err := f.res.CreateCustom(context.Background(), f.customer.ID, in)
	assert.ErrorIs(t, err, ErrForbidden)

	res, err := f.res.CreateCustom(context.Background(), f.owner.ID, in)
	require.NoError(t, err)
	assert.Equal(t, model.StateConfirmed, res.State)
	assert.Equal(t, f.customer.ID, res.UserID)
	assert.Equal(t, "50.00", res.TotalPrice)
}

func TestConfirm_OnlyOwner(t *testing.T) {
	f := newFixture(t0)
	r := f.put(model.StatePending, t0.Add(2*time.Hour), t0.Add(3*time.Hour), "25.00")

	_, err := f.res.Confirm(context.Background(), r.ID, Actor{UserID: f.customer.ID})
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := f.res.Confirm(context.Background(), r.ID, Actor{UserID: f.owner.ID})
	require.NoError(t, err)
	assert.Equal(t, model.StateConfirmed, got.State)
	assert.Equal(t, model.StateConfirmed, f.get(r.ID).State)

	evs := f.events.named(model.EventReservationUpdated)
	require.Len(t, evs, 1)
	change := evs[0].Data.(model.ReservationChange)
	assert.Equal(t, model.StatePending, change.OldState)
	assert.Equal(t, model.StateConfirmed, change.NewState)
	assert.Equal(t, model.ActorOwner, change.Actor)
}

func TestCancel_UserBeforeArrivalOnly(t *testing.T) {
	f := newFixture(t0)
	early := f.put(model.StateConfirmed, t0.Add(time.Hour), t0.Add(2*time.Hour), "25.00")
	late := f.put(model.StateConfirmed, t0.Add(-time.Minute), t0.Add(time.Hour), "25.00")

	_, err := f.res.Cancel(context.Background(), early.ID, Actor{UserID: f.customer.ID})
	require.NoError(t, err)
	assert.Equal(t, model.StateCancelled, f.get(early.ID).State)

	_, err = f.res.Cancel(context.Background(), late.ID, Actor{UserID: f.customer.ID})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, model.StateConfirmed, f.get(late.ID).State)

	_, err = f.res.Cancel(context.Background(), late.ID, Actor{UserID: f.owner.ID})
	assert.NoError(t, err)
}

func TestMarkReserved_RejectedForClients(t *testing.T) {
	f := newFixture(t0)
	r := f.put(model.StateConfirmed, t0.Add(-time.Hour), t0.Add(time.Hour), "25.00")

	for _, actor := range []Actor{{UserID: f.customer.ID}, {UserID: f.owner.ID}} {
		_, err := f.res.MarkReserved(context.Background(), r.ID, actor)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}
	assert.Equal(t, model.StateConfirmed, f.get(r.ID).State)
}

func TestTransition_NotParticipant(t *testing.T) {
	f := newFixture(t0)
	stranger := f.store.PutUser(model.User{Email: "x@example.com"})
	r := f.put(model.StatePending, t0.Add(time.Hour), t0.Add(2*time.Hour), "25.00")

	_, err := f.res.Cancel(context.Background(), r.ID, Actor{UserID: stranger.ID})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.res.Cancel(context.Background(), 999, Actor{UserID: stranger.ID})
	assert.ErrorIs(t, err, ErrNotFound)
}

// Every (from, to) pair is tried by every actor; only table edges succeed.
func TestTransition_Legality(t *testing.T) {
	all := []model.State{model.StatePending, model.StateConfirmed, model.StateReserved, model.StateCompleted, model.StateCancelled}
	legal := map[[2]model.State]bool{
		{model.StatePending, model.StateConfirmed}:   true,
		{model.StatePending, model.StateCancelled}:   true,
		{model.StateConfirmed, model.StateCancelled}: true,
		{model.StateConfirmed, model.StateReserved}:  true,
		{model.StateReserved, model.StateCompleted}:  true,
	}

	for _, from := range all {
		for _, to := range all {
			f := newFixture(t0)
			actors := []Actor{{UserID: f.customer.ID}, {UserID: f.owner.ID}, SystemActor}
			for _, actor := range actors {
				r := f.put(from, t0.Add(time.Hour), t0.Add(2*time.Hour), "25.00")
				got, err := f.res.Transition(context.Background(), r.ID, to, actor)
				if err == nil {
					assert.True(t, legal[[2]model.State{from, to}], "%s -> %s by %+v", from, to, actor)
					assert.Equal(t, to, got.State)
					continue
				}
				if !legal[[2]model.State{from, to}] {
					assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", from, to)
				}
				assert.Equal(t, from, f.get(r.ID).State)
			}
		}
	}
}

func TestAdvance_StaleReadLosesRace(t *testing.T) {
	f := newFixture(t0)
	r := f.put(model.StateConfirmed, t0.Add(-time.Hour), t0.Add(time.Hour), "25.00")
	stale := f.get(r.ID)

	_, err := f.res.Cancel(context.Background(), r.ID, Actor{UserID: f.owner.ID})
	require.NoError(t, err)

	_, err = f.res.Advance(context.Background(), stale, model.StateReserved)
	assert.ErrorIs(t, err, ErrConcurrencyConflict)
	assert.Equal(t, model.StateCancelled, f.get(r.ID).State)
}

func TestGet_VisibleToParticipants(t *testing.T) {
	f := newFixture(t0)
	stranger := f.store.PutUser(model.User{Email: "x@example.com"})
	r := f.put(model.StatePending, t0.Add(time.Hour), t0.Add(2*time.Hour), "25.00")

	for _, id := range []uint64{f.customer.ID, f.owner.ID} {
		got, err := f.res.Get(context.Background(), r.ID, id)
		require.NoError(t, err)
		assert.Equal(t, r.ID, got.ID)
	}
	_, err := f.res.Get(context.Background(), r.ID, stranger.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListings(t *testing.T) {
	f := newFixture(t0)
	other := f.store.PutSpace(model.Space{UserID: f.customer.ID, PricePerHour: "10"})
	f.put(model.StatePending, t0.Add(time.Hour), t0.Add(2*time.Hour), "25.00")
	f.store.PutReservation(model.Reservation{SpaceID: other.ID, UserID: f.owner.ID, State: model.StatePending})

	ctx := context.Background()
	all, err := f.res.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := f.res.ListForOwner(ctx, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, f.space.ID, mine[0].SpaceID)

	booked, err := f.res.ListForUser(ctx, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, booked, 1)
	assert.Equal(t, other.ID, booked[0].SpaceID)

	_, err = f.res.ListBySpace(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostReview(t *testing.T) {
	f := newFixture(t0)
	done := f.put(model.StateCompleted, t0.Add(-3*time.Hour), t0.Add(-time.Hour), "50.00")
	open := f.put(model.StateConfirmed, t0.Add(time.Hour), t0.Add(2*time.Hour), "25.00")
	ctx := context.Background()

	_, err := f.res.PostReview(ctx, f.customer.ID, ReviewInput{ReservationID: done.ID, Rating: 6})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.res.PostReview(ctx, f.customer.ID, ReviewInput{ReservationID: open.ID, Rating: 4})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.res.PostReview(ctx, f.owner.ID, ReviewInput{ReservationID: done.ID, Rating: 4})
	assert.ErrorIs(t, err, ErrForbidden)

	rv, err := f.res.PostReview(ctx, f.customer.ID, ReviewInput{ReservationID: done.ID, Rating: 5, Comment: " great "})
	require.NoError(t, err)
	assert.Equal(t, "great", rv.Comment)
	assert.Equal(t, f.space.ID, rv.SpaceID)

	_, err = f.res.PostReview(ctx, f.customer.ID, ReviewInput{ReservationID: done.ID, Rating: 3})
	assert.ErrorIs(t, err, ErrConflict)

	reviews, err := f.res.ListReviews(ctx, f.space.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, 5, reviews[0].Rating)
	_, err = f.res.ListReviews(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}
