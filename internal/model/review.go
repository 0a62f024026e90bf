package model

import "time"

// Review is a rating left by the booking user once a reservation completes.
// There is at most one review per reservation.
type Review struct {
	ID            uint64    `json:"id"`
	ReservationID uint64    `json:"reservationId"`
	UserID        uint64    `json:"userId"`
	SpaceID       uint64    `json:"spaceId"`
	Rating        int       `json:"rating"`
	Comment       string    `json:"comment"`
	CreatedAt     time.Time `json:"createdAt"`
}
