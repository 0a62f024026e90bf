package model

import "time"

// Payment is a withdrawal request created when a space owner settles the
// earnings of their completed reservations.  A payment is written once and
// never changed; ReservationCount records how many reservations it closed
// so the settlement can be reconciled later.
type Payment struct {
	ID               uint64    `json:"id"`
	UserID           uint64    `json:"userId"`
	AccountType      string    `json:"accountType"`
	AccountName      string    `json:"accountName"`
	AccountNumber    string    `json:"accountNumber"`
	WithdrawAmount   string    `json:"withdrawAmount"`
	ReservationCount int       `json:"reservationCount"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Discrepancy describes a settlement whose stored records disagree.  It is
// produced by the reconciliation scan and never persisted.
type Discrepancy struct {
	PaymentID     *uint64 `json:"paymentId,omitempty"`
	ReservationID *uint64 `json:"reservationId,omitempty"`
	Kind          string  `json:"kind"`
	Expected      string  `json:"expected"`
	Actual        string  `json:"actual"`
}

// Discrepancy kinds.
const (
	DiscrepancyCount    = "reservation_count"
	DiscrepancyAmount   = "amount"
	DiscrepancyOrphaned = "orphaned_withdrawn"
)

// SettlementRow is a reservation linked to a payment, as read back by the
// reconciliation scan.
type SettlementRow struct {
	PaymentID     uint64
	ReservationID uint64
	TotalPrice    string
}
