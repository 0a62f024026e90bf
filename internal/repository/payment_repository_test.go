package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacebook/reservation-core/internal/model"
)

var paymentCols = []string{"id", "user_id", "account_type", "account_name", "account_number",
	"withdraw_amount", "reservation_count", "created_at"}

func TestPaymentRepo_Settle(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentRepo(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).
		WithArgs(uint64(9), "bank", "Ali", "PK001", "125", 2).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reservations SET withdrawn = 1, payment_id = ?")).
		WithArgs(int64(42), uint64(5), uint64(6)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE id = ?")).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(paymentCols).AddRow(42, 9, "bank", "Ali", "PK001", "125", 2, now))
	mock.ExpectCommit()

	p := &model.Payment{UserID: 9, AccountType: "bank", AccountName: "Ali", AccountNumber: "PK001", WithdrawAmount: "125"}
	require.NoError(t, repo.Settle(context.Background(), p, []uint64{5, 6}))
	assert.Equal(t, uint64(42), p.ID)
	assert.Equal(t, 2, p.ReservationCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_Settle_PartialClaimRollsBack(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).
		WillReturnResult(sqlmock.NewResult(43, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reservations SET withdrawn = 1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	p := &model.Payment{UserID: 9, AccountType: "bank", AccountName: "Ali", AccountNumber: "PK001", WithdrawAmount: "125"}
	err := repo.Settle(context.Background(), p, []uint64{5, 6})
	assert.ErrorIs(t, err, ErrSettlementConflict)
	assert.Zero(t, p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_Settle_InsertErrorRollsBack(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.Settle(context.Background(), &model.Payment{UserID: 1}, []uint64{1})
	assert.EqualError(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_ListOrphanedWithdrawn(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE withdrawn = 1 AND payment_id IS NULL")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3).AddRow(8))

	ids, err := repo.ListOrphanedWithdrawn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 8}, ids)
}

func TestReviewRepo_Create_Duplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReviewRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reviews")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := repo.Create(context.Background(), &model.Review{ReservationID: 1, UserID: 2, SpaceID: 3, Rating: 5})
	assert.ErrorIs(t, err, ErrDuplicate)
}
