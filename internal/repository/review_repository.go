package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/spacebook/reservation-core/internal/model"
)

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// ReviewRepo persists reviews left on completed reservations.
type ReviewRepo struct {
	db *sql.DB
}

// NewReviewRepo returns a new ReviewRepo bound to the given database.
func NewReviewRepo(db *sql.DB) *ReviewRepo { return &ReviewRepo{db: db} }

// Create inserts a review.  The reservation_id column is unique, so a
// second review for the same reservation yields ErrDuplicate.
func (r *ReviewRepo) Create(ctx context.Context, rv *model.Review) error {
	const q = `INSERT INTO reviews (reservation_id, user_id, space_id, rating, comment) VALUES (?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q, rv.ReservationID, rv.UserID, rv.SpaceID, rv.Rating, rv.Comment)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	return r.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM reviews WHERE id = ?`, id).Scan(&rv.ID, &rv.CreatedAt)
}

// ListBySpace returns the reviews left on a space, newest first.
func (r *ReviewRepo) ListBySpace(ctx context.Context, spaceID uint64) ([]*model.Review, error) {
	const q = `SELECT id, reservation_id, user_id, space_id, rating, comment, created_at
	           FROM reviews WHERE space_id = ? ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, q, spaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*model.Review, 0)
	for rows.Next() {
		var rv model.Review
		if err := rows.Scan(&rv.ID, &rv.ReservationID, &rv.UserID, &rv.SpaceID, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &rv)
	}
	return out, rows.Err()
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
