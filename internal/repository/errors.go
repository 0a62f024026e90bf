// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow the service layer to
// distinguish between different failure scenarios without depending on
// database/sql. ErrStateConflict signals that a conditional write lost a
// race with another writer, while ErrSettlementConflict means a
// withdrawal batch could not claim every reservation it expected to and
// was rolled back.
package repository

import "errors"

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrStateConflict is returned by conditional state updates when the row
// is no longer in the expected state.
var ErrStateConflict = errors.New("state conflict")

// ErrSettlementConflict is returned when a settlement batch update
// matched fewer reservations than requested. Nothing is written.
var ErrSettlementConflict = errors.New("settlement conflict")

// ErrDuplicate is returned when a unique constraint rejects an insert.
var ErrDuplicate = errors.New("duplicate")
