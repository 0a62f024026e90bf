package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spacebook/reservation-core/internal/model"
)

// MemoryStore keeps every table in process memory behind a single mutex.
// It backs STORE_DRIVER=memory for local runs and the service tests, and
// honours the same conditional-write contracts as the MySQL repositories.
// Values are copied on the way in and out so callers never share state
// with the store.
type MemoryStore struct {
	mu           sync.Mutex
	now          func() time.Time
	users        map[uint64]model.User
	spaces       map[uint64]model.Space
	reservations map[uint64]model.Reservation
	payments     map[uint64]model.Payment
	reviews      map[uint64]model.Review
	seq          uint64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:          func() time.Time { return time.Now().UTC() },
		users:        map[uint64]model.User{},
		spaces:       map[uint64]model.Space{},
		reservations: map[uint64]model.Reservation{},
		payments:     map[uint64]model.Payment{},
		reviews:      map[uint64]model.Review{},
	}
}

func (m *MemoryStore) nextID() uint64 {
	m.seq++
	return m.seq
}

// PutUser inserts or replaces a user.  A zero ID is assigned.
func (m *MemoryStore) PutUser(u model.User) model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == 0 {
		u.ID = m.nextID()
	} else if u.ID > m.seq {
		m.seq = u.ID
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = m.now()
	}
	m.users[u.ID] = u
	return u
}

// PutSpace inserts or replaces a space.  A zero ID is assigned.
func (m *MemoryStore) PutSpace(s model.Space) model.Space {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == 0 {
		s.ID = m.nextID()
	} else if s.ID > m.seq {
		m.seq = s.ID
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.now()
	}
	m.spaces[s.ID] = s
	return s
}

// PutReservation inserts or replaces a reservation as-is, bypassing the
// lifecycle.  It exists for seeding.
func (m *MemoryStore) PutReservation(r model.Reservation) model.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == 0 {
		r.ID = m.nextID()
	} else if r.ID > m.seq {
		m.seq = r.ID
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = m.now()
		r.UpdatedAt = r.CreatedAt
	}
	m.reservations[r.ID] = cloneReservation(r)
	return r
}

// Reservations returns the reservation view of the store.
func (m *MemoryStore) Reservations() *MemoryReservations { return &MemoryReservations{m} }

// Spaces returns the space view of the store.
func (m *MemoryStore) Spaces() *MemorySpaces { return &MemorySpaces{m} }

// Users returns the user view of the store.
func (m *MemoryStore) Users() *MemoryUsers { return &MemoryUsers{m} }

// Payments returns the payment view of the store.
func (m *MemoryStore) Payments() *MemoryPayments { return &MemoryPayments{m} }

// Reviews returns the review view of the store.
func (m *MemoryStore) Reviews() *MemoryReviews { return &MemoryReviews{m} }

func cloneReservation(r model.Reservation) model.Reservation {
	if r.PaymentID != nil {
		pid := *r.PaymentID
		r.PaymentID = &pid
	}
	return r
}

func reservationPtr(r model.Reservation) *model.Reservation {
	c := cloneReservation(r)
	return &c
}

// MemoryReservations implements the reservation store over MemoryStore.
type MemoryReservations struct{ m *MemoryStore }

func (v *MemoryReservations) filter(keep func(model.Reservation) bool, less func(a, b *model.Reservation) bool) []*model.Reservation {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	out := make([]*model.Reservation, 0)
	for _, r := range v.m.reservations {
		if keep(r) {
			out = append(out, reservationPtr(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func byIDAsc(a, b *model.Reservation) bool  { return a.ID < b.ID }
func byIDDesc(a, b *model.Reservation) bool { return a.ID > b.ID }

func (v *MemoryReservations) Create(_ context.Context, r *model.Reservation) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	r.ID = v.m.nextID()
	r.Withdrawn = false
	r.PaymentID = nil
	r.CreatedAt = v.m.now()
	r.UpdatedAt = r.CreatedAt
	v.m.reservations[r.ID] = cloneReservation(*r)
	return nil
}

func (v *MemoryReservations) GetByID(_ context.Context, id uint64) (*model.Reservation, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	r, ok := v.m.reservations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return reservationPtr(r), nil
}

func (v *MemoryReservations) ListAll(_ context.Context) ([]*model.Reservation, error) {
	return v.filter(func(model.Reservation) bool { return true }, byIDDesc), nil
}

func (v *MemoryReservations) ListByState(_ context.Context, state model.State) ([]*model.Reservation, error) {
	return v.filter(func(r model.Reservation) bool { return r.State == state }, byIDAsc), nil
}

func (v *MemoryReservations) ListBySpace(_ context.Context, spaceID uint64) ([]*model.Reservation, error) {
	return v.filter(func(r model.Reservation) bool { return r.SpaceID == spaceID }, byIDAsc), nil
}

func (v *MemoryReservations) ListByUser(_ context.Context, userID uint64) ([]*model.Reservation, error) {
	return v.filter(func(r model.Reservation) bool { return r.UserID == userID }, byIDDesc), nil
}

func (v *MemoryReservations) ListBySpaces(_ context.Context, spaceIDs []uint64) ([]*model.Reservation, error) {
	set := idSet(spaceIDs)
	return v.filter(func(r model.Reservation) bool { _, ok := set[r.SpaceID]; return ok }, byIDDesc), nil
}

func (v *MemoryReservations) ListWithdrawable(_ context.Context, spaceIDs []uint64) ([]*model.Reservation, error) {
	set := idSet(spaceIDs)
	return v.filter(func(r model.Reservation) bool {
		_, ok := set[r.SpaceID]
		return ok && r.State == model.StateCompleted && !r.Withdrawn
	}, byIDAsc), nil
}

func (v *MemoryReservations) UpdateState(_ context.Context, id uint64, from, to model.State) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	r, ok := v.m.reservations[id]
	if !ok {
		return ErrNotFound
	}
	if r.State != from {
		return ErrStateConflict
	}
	r.State = to
	r.UpdatedAt = v.m.now()
	v.m.reservations[id] = r
	return nil
}

// MemorySpaces implements the space store over MemoryStore.
type MemorySpaces struct{ m *MemoryStore }

func (v *MemorySpaces) GetByID(_ context.Context, id uint64) (*model.Space, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	s, ok := v.m.spaces[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (v *MemorySpaces) ListByOwner(_ context.Context, userID uint64) ([]*model.Space, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	out := make([]*model.Space, 0)
	for _, s := range v.m.spaces {
		if s.UserID == userID {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MemoryUsers implements the user store over MemoryStore.
type MemoryUsers struct{ m *MemoryStore }

func (v *MemoryUsers) GetByID(_ context.Context, id uint64) (*model.User, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	u, ok := v.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// MemoryPayments implements the payment store over MemoryStore.
type MemoryPayments struct{ m *MemoryStore }

func (v *MemoryPayments) Settle(_ context.Context, p *model.Payment, reservationIDs []uint64) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	for _, id := range reservationIDs {
		r, ok := v.m.reservations[id]
		if !ok || r.State != model.StateCompleted || r.Withdrawn {
			return ErrSettlementConflict
		}
	}
	p.ID = v.m.nextID()
	p.ReservationCount = len(reservationIDs)
	p.CreatedAt = v.m.now()
	v.m.payments[p.ID] = *p
	for _, id := range reservationIDs {
		r := v.m.reservations[id]
		pid := p.ID
		r.Withdrawn = true
		r.PaymentID = &pid
		r.UpdatedAt = p.CreatedAt
		v.m.reservations[id] = r
	}
	return nil
}

func (v *MemoryPayments) ListByUser(_ context.Context, userID uint64) ([]*model.Payment, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	out := make([]*model.Payment, 0)
	for _, p := range v.m.payments {
		if p.UserID == userID {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (v *MemoryPayments) List(_ context.Context) ([]*model.Payment, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	out := make([]*model.Payment, 0, len(v.m.payments))
	for _, p := range v.m.payments {
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v *MemoryPayments) ListSettlementRows(_ context.Context) ([]model.SettlementRow, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	out := make([]model.SettlementRow, 0)
	for _, r := range v.m.reservations {
		if r.PaymentID != nil {
			out = append(out, model.SettlementRow{PaymentID: *r.PaymentID, ReservationID: r.ID, TotalPrice: r.TotalPrice})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PaymentID != out[j].PaymentID {
			return out[i].PaymentID < out[j].PaymentID
		}
		return out[i].ReservationID < out[j].ReservationID
	})
	return out, nil
}

func (v *MemoryPayments) ListOrphanedWithdrawn(_ context.Context) ([]uint64, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	out := make([]uint64, 0)
	for _, r := range v.m.reservations {
		if r.Withdrawn && r.PaymentID == nil {
			out = append(out, r.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// MemoryReviews implements the review store over MemoryStore.
type MemoryReviews struct{ m *MemoryStore }

func (v *MemoryReviews) Create(_ context.Context, rv *model.Review) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	for _, existing := range v.m.reviews {
		if existing.ReservationID == rv.ReservationID {
			return ErrDuplicate
		}
	}
	rv.ID = v.m.nextID()
	rv.CreatedAt = v.m.now()
	v.m.reviews[rv.ID] = *rv
	return nil
}

func (v *MemoryReviews) ListBySpace(_ context.Context, spaceID uint64) ([]*model.Review, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	out := make([]*model.Review, 0)
	for _, rv := range v.m.reviews {
		if rv.SpaceID == spaceID {
			rv := rv
			out = append(out, &rv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func idSet(ids []uint64) map[uint64]struct{} {
	set := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
