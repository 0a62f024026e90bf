package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/spacebook/reservation-core/internal/model"
)

// ReservationRepo provides persistence for reservations.  Reservations are
// never deleted; state changes go through UpdateState, which only succeeds
// when the row is still in the state the caller read.  All timestamp
// fields are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, space_id, user_id, arrival_date, arrival_time, leave_date, leave_time,
       total_price, state, withdrawn, payment_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(s rowScanner) (*model.Reservation, error) {
	var (
		res       model.Reservation
		state     string
		paymentID sql.NullInt64
	)
	if err := s.Scan(
		&res.ID, &res.SpaceID, &res.UserID, &res.ArrivalDate, &res.ArrivalTime,
		&res.LeaveDate, &res.LeaveTime, &res.TotalPrice, &state, &res.Withdrawn,
		&paymentID, &res.CreatedAt, &res.UpdatedAt,
	); err != nil {
		return nil, err
	}
	res.State = model.State(state)
	if paymentID.Valid {
		pid := uint64(paymentID.Int64)
		res.PaymentID = &pid
	}
	return &res, nil
}

func (r *ReservationRepo) queryList(ctx context.Context, q string, args ...any) ([]*model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// Create inserts a new reservation and populates its ID and timestamps.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations
	           (space_id, user_id, arrival_date, arrival_time, leave_date, leave_time, total_price, state, withdrawn)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`
	result, err := r.db.ExecContext(ctx, q,
		res.SpaceID, res.UserID, res.ArrivalDate, res.ArrivalTime,
		res.LeaveDate, res.LeaveTime, res.TotalPrice, string(res.State))
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	// Query back the full row to populate timestamps and defaults
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*res = *created
	return nil
}

// GetByID returns a reservation or ErrNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return res, err
}

// ListAll returns every reservation, newest first.
func (r *ReservationRepo) ListAll(ctx context.Context) ([]*model.Reservation, error) {
	return r.queryList(ctx, `SELECT `+reservationColumns+` FROM reservations ORDER BY id DESC`)
}

// ListByState returns the reservations currently in state, oldest first.
func (r *ReservationRepo) ListByState(ctx context.Context, state model.State) ([]*model.Reservation, error) {
	return r.queryList(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE state = ? ORDER BY id`, string(state))
}

// ListBySpace returns the reservations of a single space.
func (r *ReservationRepo) ListBySpace(ctx context.Context, spaceID uint64) ([]*model.Reservation, error) {
	return r.queryList(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE space_id = ? ORDER BY arrival_date, arrival_time`, spaceID)
}

// ListByUser returns the reservations booked by a user.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]*model.Reservation, error) {
	return r.queryList(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE user_id = ? ORDER BY id DESC`, userID)
}

// ListBySpaces returns the reservations on any of the given spaces.  An
// empty slice yields no rows without touching the database.
func (r *ReservationRepo) ListBySpaces(ctx context.Context, spaceIDs []uint64) ([]*model.Reservation, error) {
	if len(spaceIDs) == 0 {
		return []*model.Reservation{}, nil
	}
	in, args := inClause(spaceIDs)
	return r.queryList(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE space_id IN `+in+` ORDER BY id DESC`, args...)
}

// ListWithdrawable returns completed reservations on the given spaces that
// have not been settled yet.
func (r *ReservationRepo) ListWithdrawable(ctx context.Context, spaceIDs []uint64) ([]*model.Reservation, error) {
	if len(spaceIDs) == 0 {
		return []*model.Reservation{}, nil
	}
	in, args := inClause(spaceIDs)
	q := `SELECT ` + reservationColumns + ` FROM reservations
	      WHERE state = 'completed' AND withdrawn = 0 AND space_id IN ` + in + ` ORDER BY id`
	return r.queryList(ctx, q, args...)
}

// UpdateState moves a reservation from one state to another.  The update
// only applies while the row is still in from; otherwise ErrStateConflict
// is returned (or ErrNotFound when the row does not exist at all).
func (r *ReservationRepo) UpdateState(ctx context.Context, id uint64, from, to model.State) error {
	const q = `UPDATE reservations SET state = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND state = ?`
	result, err := r.db.ExecContext(ctx, q, string(to), id, string(from))
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM reservations WHERE id = ?)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStateConflict
}

// inClause builds "(?, ?, ?)" and the matching argument list.
func inClause(ids []uint64) (string, []any) {
	args := make([]any, len(ids))
	marks := make([]string, len(ids))
	for i, id := range ids {
		args[i] = id
		marks[i] = "?"
	}
	return "(" + strings.Join(marks, ", ") + ")", args
}
