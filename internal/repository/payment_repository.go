package repository

import (
	"context"
	"database/sql"

	"github.com/spacebook/reservation-core/internal/model"
)

// PaymentRepo persists withdrawal requests and settles the reservations
// they close.  Payments are immutable once inserted.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, user_id, account_type, account_name, account_number, withdraw_amount, reservation_count, created_at`

func scanPayment(s rowScanner) (*model.Payment, error) {
	var p model.Payment
	if err := s.Scan(&p.ID, &p.UserID, &p.AccountType, &p.AccountName, &p.AccountNumber,
		&p.WithdrawAmount, &p.ReservationCount, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// Settle inserts the payment and marks every reservation in
// reservationIDs as withdrawn against it, in one transaction.  The batch
// update only claims rows that are still completed and unwithdrawn; if it
// claims fewer rows than requested the transaction is rolled back and
// ErrSettlementConflict is returned.  On success p.ID and p.CreatedAt are
// populated.
func (r *PaymentRepo) Settle(ctx context.Context, p *model.Payment, reservationIDs []uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const ins = `INSERT INTO payments (user_id, account_type, account_name, account_number, withdraw_amount, reservation_count)
	             VALUES (?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, ins, p.UserID, p.AccountType, p.AccountName, p.AccountNumber,
		p.WithdrawAmount, len(reservationIDs))
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	in, args := inClause(reservationIDs)
	upd := `UPDATE reservations SET withdrawn = 1, payment_id = ?, updated_at = UTC_TIMESTAMP()
	        WHERE state = 'completed' AND withdrawn = 0 AND id IN ` + in
	result, err = tx.ExecContext(ctx, upd, append([]any{id}, args...)...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n != int64(len(reservationIDs)) {
		return ErrSettlementConflict
	}

	saved, err := scanPayment(tx.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id))
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	*p = *saved
	return nil
}

// ListByUser returns the user's payments, newest first.
func (r *PaymentRepo) ListByUser(ctx context.Context, userID uint64) ([]*model.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE user_id = ? ORDER BY id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*model.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// List returns every payment, oldest first.
func (r *PaymentRepo) List(ctx context.Context) ([]*model.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payments ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*model.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListSettlementRows returns every reservation that has been linked to a
// payment.
func (r *PaymentRepo) ListSettlementRows(ctx context.Context) ([]model.SettlementRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT payment_id, id, total_price FROM reservations WHERE payment_id IS NOT NULL ORDER BY payment_id, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.SettlementRow, 0)
	for rows.Next() {
		var row model.SettlementRow
		if err := rows.Scan(&row.PaymentID, &row.ReservationID, &row.TotalPrice); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ListOrphanedWithdrawn returns reservations flagged withdrawn without a
// payment to account for them.
func (r *PaymentRepo) ListOrphanedWithdrawn(ctx context.Context) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM reservations WHERE withdrawn = 1 AND payment_id IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]uint64, 0)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
