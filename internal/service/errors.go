package service

import (
	"errors"
	"fmt"

	"github.com/spacebook/reservation-core/internal/model"
)

// Error categories.  Every error returned by this package wraps exactly
// one of them, so callers can branch with errors.Is.
var (
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrConflict            = errors.New("conflict")
	ErrAmountMismatch      = errors.New("amount mismatch")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

// Error is a categorized error with a message fit for API clients.
type Error struct {
	kind error
	msg  string
}

func newError(kind error, msg string) *Error { return &Error{kind: kind, msg: msg} }

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

var (
	ErrMissingWithdrawFields = newError(ErrValidation, "All fields are required (accountType, accountName, accountNumber, withdrawAmount).")
	ErrInvalidWithdrawAmount = newError(ErrValidation, "withdrawAmount must be a positive decimal number.")
	ErrUserNotFound          = newError(ErrNotFound, "User not found.")
	ErrNoSpaces              = newError(ErrNotFound, "User does not have any spaces.")
	ErrNothingToWithdraw     = newError(ErrNotFound, "No completed reservations available for withdrawal.")
	ErrWithdrawMismatch      = newError(ErrAmountMismatch, "Withdraw amount does not match the total completed reservation earnings.")
	ErrWithdrawInProgress    = newError(ErrConcurrencyConflict, "Another withdrawal for this account is in progress; retry with a fresh total.")
	ErrWithdrawRaced         = newError(ErrConcurrencyConflict, "Reservations changed while the withdrawal was processed; retry with a fresh total.")

	ErrReservationNotFound = newError(ErrNotFound, "Reservation not found.")
	ErrSpaceNotFound       = newError(ErrNotFound, "Space not found.")
	ErrNotParticipant      = newError(ErrForbidden, "You are not allowed to access this reservation.")
	ErrNotSpaceOwner       = newError(ErrForbidden, "Only the space owner can do this.")
	ErrSystemTransition    = newError(ErrInvalidTransition, "Reserved and completed states are set automatically and cannot be requested.")
	ErrArrivalPassed       = newError(ErrInvalidTransition, "The reservation can no longer be cancelled after arrival time.")
	ErrReservationRaced    = newError(ErrConcurrencyConflict, "The reservation was changed by another request; reload and retry.")
	ErrSlotTaken           = newError(ErrConflict, "The space is already booked for part of this time range.")
	ErrAlreadyReviewed     = newError(ErrConflict, "This reservation has already been reviewed.")
	ErrReviewNotAllowed    = newError(ErrInvalidTransition, "Only completed reservations can be reviewed.")
)

func validationf(format string, args ...any) error {
	return newError(ErrValidation, fmt.Sprintf(format, args...))
}

func invalidTransition(from, to model.State) error {
	return newError(ErrInvalidTransition, fmt.Sprintf("Cannot move a %s reservation to %s.", from, to))
}
