package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacebook/reservation-core/internal/model"
)

func TestSpaceRepo_GetByIDAndListByOwner(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSpaceRepo(db)
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	cols := []string{"id", "user_id", "title", "address", "price_per_hour", "created_at"}

	mock.ExpectQuery(regexp.QuoteMeta("FROM spaces WHERE id = ?")).
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(3, 9, "Studio", "Main St", "25.00", now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM spaces WHERE id = ?")).
		WithArgs(uint64(4)).
		WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectQuery(regexp.QuoteMeta("FROM spaces WHERE user_id = ?")).
		WithArgs(uint64(10)).
		WillReturnRows(sqlmock.NewRows(cols))

	s, err := repo.GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), s.UserID)
	assert.Equal(t, "25.00", s.PricePerHour)

	_, err = repo.GetByID(context.Background(), 4)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := repo.ListByOwner(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	cols := []string{"id", "email", "name", "created_at"}

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).
		WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(9, "owner@example.com", "Owner", time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).
		WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows(cols))

	u, err := repo.GetByID(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", u.Email)

	_, err = repo.GetByID(context.Background(), 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReviewRepo_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReviewRepo(db)
	now := time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reviews")).
		WithArgs(uint64(7), uint64(2), uint64(3), 5, "great").
		WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, created_at FROM reviews WHERE id = ?")).
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(12, now))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reviews")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	rv := &model.Review{ReservationID: 7, UserID: 2, SpaceID: 3, Rating: 5, Comment: "great"}
	require.NoError(t, repo.Create(context.Background(), rv))
	assert.Equal(t, uint64(12), rv.ID)
	assert.Equal(t, now, rv.CreatedAt)

	err := repo.Create(context.Background(), &model.Review{ReservationID: 7, UserID: 2, SpaceID: 3, Rating: 4})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepo_ListBySpace(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReviewRepo(db)
	cols := []string{"id", "reservation_id", "user_id", "space_id", "rating", "comment", "created_at"}

	mock.ExpectQuery(regexp.QuoteMeta("FROM reviews WHERE space_id = ?")).
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(2, 8, 2, 3, 4, "ok", time.Now()).
			AddRow(1, 7, 2, 3, 5, "great", time.Now()))

	list, err := repo.ListBySpace(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, uint64(2), list[0].ID)
	assert.Equal(t, 5, list[1].Rating)
}
