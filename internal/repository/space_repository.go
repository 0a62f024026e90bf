package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/spacebook/reservation-core/internal/model"
)

// SpaceRepo reads spaces.  Spaces are managed elsewhere; this repository
// only resolves ownership and pricing.
type SpaceRepo struct {
	db *sql.DB
}

// NewSpaceRepo returns a new SpaceRepo bound to the given database.
func NewSpaceRepo(db *sql.DB) *SpaceRepo { return &SpaceRepo{db: db} }

// GetByID returns a space or ErrNotFound.
func (r *SpaceRepo) GetByID(ctx context.Context, id uint64) (*model.Space, error) {
	const q = `SELECT id, user_id, title, address, price_per_hour, created_at FROM spaces WHERE id = ?`
	var s model.Space
	err := r.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.UserID, &s.Title, &s.Address, &s.PricePerHour, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByOwner returns every space owned by userID.  A user without spaces
// gets an empty slice, not an error.
func (r *SpaceRepo) ListByOwner(ctx context.Context, userID uint64) ([]*model.Space, error) {
	const q = `SELECT id, user_id, title, address, price_per_hour, created_at FROM spaces WHERE user_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*model.Space, 0)
	for rows.Next() {
		var s model.Space
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &s.Address, &s.PricePerHour, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
