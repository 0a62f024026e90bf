package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spacebook/reservation-core/internal/lock"
	"github.com/spacebook/reservation-core/internal/metrics"
	"github.com/spacebook/reservation-core/internal/model"
	"github.com/spacebook/reservation-core/internal/repository"
)

// Locker serialises withdrawals per owner.  Acquire fails fast with
// lock.ErrBusy when the key is held.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (lock.Release, error)
}

// DefaultWithdrawLockTTL bounds how long a crashed request can hold an
// owner's withdrawal lock.
const DefaultWithdrawLockTTL = 30 * time.Second

// WithdrawalRequest is a space owner's request to settle their earnings.
type WithdrawalRequest struct {
	UserID         uint64
	AccountType    string
	AccountName    string
	AccountNumber  string
	WithdrawAmount string
}

// Balance is the withdrawable state of an owner's account.
type Balance struct {
	Amount           string `json:"amount"`
	ReservationCount int    `json:"reservationCount"`
}

// WithdrawalService settles completed reservation earnings into payments.
type WithdrawalService struct {
	users        UserStore
	spaces       SpaceStore
	reservations ReservationStore
	payments     PaymentStore
	locker       Locker
	lockTTL      time.Duration
	notifier     Notifier
	opts         options
}

func NewWithdrawalService(
	users UserStore,
	spaces SpaceStore,
	reservations ReservationStore,
	payments PaymentStore,
	locker Locker,
	notifier Notifier,
	opts ...Option,
) *WithdrawalService {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &WithdrawalService{
		users:        users,
		spaces:       spaces,
		reservations: reservations,
		payments:     payments,
		locker:       locker,
		lockTTL:      DefaultWithdrawLockTTL,
		notifier:     notifier,
		opts:         o,
	}
}

// SetLockTTL overrides DefaultWithdrawLockTTL.
func (s *WithdrawalService) SetLockTTL(ttl time.Duration) {
	if ttl > 0 {
		s.lockTTL = ttl
	}
}

func lockKey(userID uint64) string { return "withdraw:" + strconv.FormatUint(userID, 10) }

// RequestWithdrawal settles every completed, unwithdrawn reservation on the
// caller's spaces into one Payment.  The requested amount must equal the
// computed total exactly; there is no partial withdrawal.
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, req WithdrawalRequest) (*model.Payment, error) {
	p, err := s.requestWithdrawal(ctx, req)
	metrics.Withdrawals.WithLabelValues(withdrawalResult(err)).Inc()
	return p, err
}

func (s *WithdrawalService) requestWithdrawal(ctx context.Context, req WithdrawalRequest) (*model.Payment, error) {
	log := s.opts.log.With(zap.Uint64("user_id", req.UserID))

	req.AccountType = strings.TrimSpace(req.AccountType)
	req.AccountName = strings.TrimSpace(req.AccountName)
	req.AccountNumber = strings.TrimSpace(req.AccountNumber)
	req.WithdrawAmount = strings.TrimSpace(req.WithdrawAmount)
	if req.AccountType == "" || req.AccountName == "" || req.AccountNumber == "" || req.WithdrawAmount == "" {
		return nil, ErrMissingWithdrawFields
	}
	requested, err := parseAmount(req.WithdrawAmount)
	if err != nil || !requested.IsPositive() {
		return nil, ErrInvalidWithdrawAmount
	}

	if _, err := s.users.GetByID(ctx, req.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	release, err := s.locker.Acquire(ctx, lockKey(req.UserID), s.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			log.Warn("withdrawal already in progress")
			return nil, ErrWithdrawInProgress
		}
		return nil, fmt.Errorf("acquire withdrawal lock: %w", err)
	}
	defer release()

	matched, total, err := s.withdrawable(ctx, req.UserID, log)
	if err != nil {
		return nil, err
	}
	if !requested.Equal(total) {
		log.Info("withdrawal amount mismatch",
			zap.String("requested", requested.String()),
			zap.String("total", formatAmount(total)),
		)
		return nil, ErrWithdrawMismatch
	}

	ids := make([]uint64, 0, len(matched))
	for _, r := range matched {
		ids = append(ids, r.ID)
	}
	p := &model.Payment{
		UserID:         req.UserID,
		AccountType:    req.AccountType,
		AccountName:    req.AccountName,
		AccountNumber:  req.AccountNumber,
		WithdrawAmount: formatAmount(total),
	}
	if err := s.payments.Settle(ctx, p, ids); err != nil {
		if errors.Is(err, repository.ErrSettlementConflict) {
			log.Warn("withdrawal lost a race on its reservations", zap.Int("reservations", len(ids)))
			return nil, ErrWithdrawRaced
		}
		return nil, fmt.Errorf("settle withdrawal: %w", err)
	}

	log.Info("withdrawal settled",
		zap.Uint64("payment_id", p.ID),
		zap.String("amount", p.WithdrawAmount),
		zap.Int("reservations", p.ReservationCount),
	)
	if s.notifier != nil {
		s.notifier.Publish(ctx, model.Event{
			ID:         uuid.NewString(),
			Name:       model.EventWithdrawalCreated,
			OccurredAt: s.opts.now(),
			Data:       model.WithdrawalCreated{Message: "Withdrawal request created", Payment: p},
		})
	}
	return p, nil
}

// withdrawable loads the owner's unsettled completed reservations and their
// total.
func (s *WithdrawalService) withdrawable(ctx context.Context, userID uint64, log *zap.Logger) ([]*model.Reservation, decimal.Decimal, error) {
	spaces, err := s.spaces.ListByOwner(ctx, userID)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("list spaces: %w", err)
	}
	if len(spaces) == 0 {
		return nil, decimal.Zero, ErrNoSpaces
	}
	matched, err := s.reservations.ListWithdrawable(ctx, spaceIDs(spaces))
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("list withdrawable reservations: %w", err)
	}
	if len(matched) == 0 {
		return nil, decimal.Zero, ErrNothingToWithdraw
	}
	total := sumPrices(matched, func(r *model.Reservation, err error) {
		log.Warn("unparseable reservation price counted as zero",
			zap.Uint64("reservation_id", r.ID),
			zap.String("total_price", r.TotalPrice),
			zap.Error(err),
		)
	})
	return matched, total, nil
}

// Balance reports what RequestWithdrawal would currently settle.  An owner
// with spaces but nothing to withdraw gets a zero balance.
func (s *WithdrawalService) Balance(ctx context.Context, userID uint64) (*Balance, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	matched, total, err := s.withdrawable(ctx, userID, s.opts.log.With(zap.Uint64("user_id", userID)))
	if errors.Is(err, ErrNothingToWithdraw) {
		return &Balance{Amount: formatAmount(decimal.Zero)}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Balance{Amount: formatAmount(total), ReservationCount: len(matched)}, nil
}

// ListWithdrawals returns the user's payments, newest first.
func (s *WithdrawalService) ListWithdrawals(ctx context.Context, userID uint64) ([]*model.Payment, error) {
	if userID == 0 {
		return nil, validationf("User ID is required.")
	}
	return s.payments.ListByUser(ctx, userID)
}

// Reconcile compares every payment with the reservations linked to it and
// reports settlements whose records disagree, plus reservations marked
// withdrawn without a payment.  It only reads.
func (s *WithdrawalService) Reconcile(ctx context.Context) ([]model.Discrepancy, error) {
	payments, err := s.payments.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	rows, err := s.payments.ListSettlementRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("list settlement rows: %w", err)
	}
	orphans, err := s.payments.ListOrphanedWithdrawn(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orphaned reservations: %w", err)
	}

	type linked struct {
		count int
		sum   decimal.Decimal
	}
	byPayment := make(map[uint64]*linked, len(payments))
	for _, row := range rows {
		l, ok := byPayment[row.PaymentID]
		if !ok {
			l = &linked{sum: decimal.Zero}
			byPayment[row.PaymentID] = l
		}
		l.count++
		if price, err := parseAmount(row.TotalPrice); err == nil {
			l.sum = l.sum.Add(price)
		}
	}

	var out []model.Discrepancy
	for _, p := range payments {
		pid := p.ID
		l := byPayment[pid]
		if l == nil {
			l = &linked{sum: decimal.Zero}
		}
		if l.count != p.ReservationCount {
			out = append(out, model.Discrepancy{
				PaymentID: &pid,
				Kind:      model.DiscrepancyCount,
				Expected:  strconv.Itoa(p.ReservationCount),
				Actual:    strconv.Itoa(l.count),
			})
		}
		amount, err := parseAmount(p.WithdrawAmount)
		if err != nil || !amount.Equal(l.sum) {
			out = append(out, model.Discrepancy{
				PaymentID: &pid,
				Kind:      model.DiscrepancyAmount,
				Expected:  p.WithdrawAmount,
				Actual:    formatAmount(l.sum),
			})
		}
	}
	for _, id := range orphans {
		rid := id
		out = append(out, model.Discrepancy{
			ReservationID: &rid,
			Kind:          model.DiscrepancyOrphaned,
			Expected:      "payment",
			Actual:        "none",
		})
	}

	metrics.ReconcileDiscrepancies.Set(float64(len(out)))
	for _, d := range out {
		fields := []zap.Field{zap.String("kind", d.Kind), zap.String("expected", d.Expected), zap.String("actual", d.Actual)}
		if d.PaymentID != nil {
			fields = append(fields, zap.Uint64("payment_id", *d.PaymentID))
		}
		if d.ReservationID != nil {
			fields = append(fields, zap.Uint64("reservation_id", *d.ReservationID))
		}
		s.opts.log.Error("settlement discrepancy", fields...)
	}
	s.opts.log.Info("reconciliation finished", zap.Int("payments", len(payments)), zap.Int("discrepancies", len(out)))
	return out, nil
}

func withdrawalResult(err error) string {
	switch {
	case err == nil:
		return "settled"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAmountMismatch):
		return "mismatch"
	case errors.Is(err, ErrConcurrencyConflict):
		return "conflict"
	}
	return "error"
}
