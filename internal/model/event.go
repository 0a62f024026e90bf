package model

import "time"

// Event names pushed to listeners.
const (
	EventReservationUpdated = "reservationUpdated"
	EventReservationCreated = "reservationCreated"
	EventWithdrawalCreated  = "withdrawalCreated"
)

// Event is an advisory notification about a state change.  Listeners must
// treat it as a refresh hint, never as a source of truth.
type Event struct {
	ID         string    `json:"id"`
	Name       string    `json:"event"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

// ReservationChange is the payload of reservationUpdated and
// reservationCreated events.
type ReservationChange struct {
	Message       string       `json:"message"`
	ReservationID uint64       `json:"reservationId"`
	OldState      State        `json:"oldState,omitempty"`
	NewState      State        `json:"newState"`
	Actor         ActorKind    `json:"actor"`
	Reservation   *Reservation `json:"reservation"`
}

// WithdrawalCreated is the payload of withdrawalCreated events.
type WithdrawalCreated struct {
	Message string   `json:"message"`
	Payment *Payment `json:"payment"`
}
