package model

import (
	"fmt"
	"strings"
	"time"
)

// State is the lifecycle state of a reservation.
type State string

const (
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateReserved  State = "reserved"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

// ActiveStates are the states that still occupy a space's calendar.
var ActiveStates = []State{StatePending, StateConfirmed, StateReserved}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateConfirmed, StateReserved, StateCompleted, StateCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool { return s == StateCompleted || s == StateCancelled }

// ParseState converts a client supplied string into a State.
func ParseState(raw string) (State, error) {
	s := State(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown reservation state %q", raw)
	}
	return s, nil
}

// ActorKind identifies who is asking for a transition.
type ActorKind string

const (
	ActorUser   ActorKind = "user"   // the user who booked the reservation
	ActorOwner  ActorKind = "owner"  // the owner of the reserved space
	ActorSystem ActorKind = "system" // the time-driven sweeper
)

// Edge is a single allowed move in the reservation state machine together
// with the actors that may perform it.
type Edge struct {
	From   State
	To     State
	Actors []ActorKind
}

// transitions is the complete reservation state machine.  Any pair not
// listed here is rejected.
var transitions = []Edge{
	{From: StatePending, To: StateConfirmed, Actors: []ActorKind{ActorOwner}},
	{From: StatePending, To: StateCancelled, Actors: []ActorKind{ActorUser, ActorOwner}},
	{From: StateConfirmed, To: StateCancelled, Actors: []ActorKind{ActorUser, ActorOwner}},
	{From: StateConfirmed, To: StateReserved, Actors: []ActorKind{ActorSystem}},
	{From: StateReserved, To: StateCompleted, Actors: []ActorKind{ActorSystem}},
}

// Transitions returns a copy of the state machine table.
func Transitions() []Edge {
	out := make([]Edge, len(transitions))
	copy(out, transitions)
	return out
}

// FindEdge returns the edge from -> to, if the table has one.
func FindEdge(from, to State) (Edge, bool) {
	for _, e := range transitions {
		if e.From == from && e.To == to {
			return e, true
		}
	}
	return Edge{}, false
}

// Allows reports whether actor may perform the edge.
func (e Edge) Allows(actor ActorKind) bool {
	for _, a := range e.Actors {
		if a == actor {
			return true
		}
	}
	return false
}

// SystemOnly reports whether only the sweeper may drive the edge.
func (e Edge) SystemOnly() bool {
	return len(e.Actors) == 1 && e.Actors[0] == ActorSystem
}

// Reservation is a booking of a space by a user for a date/time range.
// Dates and times are kept as the wall-clock strings the client sent and
// combined into instants on demand.
type Reservation struct {
	ID          uint64    `json:"id"`
	SpaceID     uint64    `json:"spaceId"`
	UserID      uint64    `json:"userId"`
	ArrivalDate string    `json:"arrivalDate"`
	ArrivalTime string    `json:"arrivalTime"`
	LeaveDate   string    `json:"leaveDate"`
	LeaveTime   string    `json:"leaveTime"`
	TotalPrice  string    `json:"totalPrice"`
	State       State     `json:"state"`
	Withdrawn   bool      `json:"withdrawn"`
	PaymentID   *uint64   `json:"paymentId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ArrivalAt combines ArrivalDate and ArrivalTime in loc.
func (r Reservation) ArrivalAt(loc *time.Location) (time.Time, error) {
	return CombineInstant(r.ArrivalDate, r.ArrivalTime, loc)
}

// LeaveAt combines LeaveDate and LeaveTime in loc.
func (r Reservation) LeaveAt(loc *time.Location) (time.Time, error) {
	return CombineInstant(r.LeaveDate, r.LeaveTime, loc)
}

const dateLayout = "2006-01-02"

var clockLayouts = []string{"15:04", "15:04:05"}

// CombineInstant parses a YYYY-MM-DD date and an HH:MM[:SS] time of day as
// a single instant in loc.  A nil loc means UTC.
func CombineInstant(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" || clock == "" {
		return time.Time{}, fmt.Errorf("empty date or time (%q %q)", date, clock)
	}
	for _, layout := range clockLayouts {
		if t, err := time.ParseInLocation(dateLayout+"T"+layout, date+"T"+clock, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("malformed date/time %q %q", date, clock)
}

// Overlaps reports whether the half-open ranges [a1,a2) and [b1,b2) intersect.
func Overlaps(a1, a2, b1, b2 time.Time) bool {
	return a1.Before(b2) && b1.Before(a2)
}
