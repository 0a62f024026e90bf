package service

import (
	"context"

	"github.com/spacebook/reservation-core/internal/model"
)

// ReservationStore is the durable home of reservations.  UpdateState must
// only apply while the row is still in from and report
// repository.ErrStateConflict otherwise.
type ReservationStore interface {
	Create(ctx context.Context, r *model.Reservation) error
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	ListAll(ctx context.Context) ([]*model.Reservation, error)
	ListByState(ctx context.Context, state model.State) ([]*model.Reservation, error)
	ListBySpace(ctx context.Context, spaceID uint64) ([]*model.Reservation, error)
	ListByUser(ctx context.Context, userID uint64) ([]*model.Reservation, error)
	ListBySpaces(ctx context.Context, spaceIDs []uint64) ([]*model.Reservation, error)
	ListWithdrawable(ctx context.Context, spaceIDs []uint64) ([]*model.Reservation, error)
	UpdateState(ctx context.Context, id uint64, from, to model.State) error
}

type SpaceStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Space, error)
	ListByOwner(ctx context.Context, userID uint64) ([]*model.Space, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// PaymentStore persists payments.  Settle must write the payment and claim
// every listed reservation atomically, failing with
// repository.ErrSettlementConflict when any of them was already claimed.
type PaymentStore interface {
	Settle(ctx context.Context, p *model.Payment, reservationIDs []uint64) error
	ListByUser(ctx context.Context, userID uint64) ([]*model.Payment, error)
	List(ctx context.Context) ([]*model.Payment, error)
	ListSettlementRows(ctx context.Context) ([]model.SettlementRow, error)
	ListOrphanedWithdrawn(ctx context.Context) ([]uint64, error)
}

type ReviewStore interface {
	Create(ctx context.Context, rv *model.Review) error
	ListBySpace(ctx context.Context, spaceID uint64) ([]*model.Review, error)
}

// Notifier delivers advisory events to listeners.  Publish must not block
// on slow listeners and has no delivery guarantee.
type Notifier interface {
	Publish(ctx context.Context, ev model.Event)
}
