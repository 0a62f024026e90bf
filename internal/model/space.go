package model

import "time"

// Space is a rentable unit owned by a user.  Reservations reference it by
// ID.  This service never mutates spaces.
//
// Fields:
//  ID           – spaces.id
//  UserID       – owner of the space
//  Title        – display name
//  Address      – free form location
//  PricePerHour – decimal string, e.g. "12.50"
type Space struct {
	ID           uint64    `json:"id"`
	UserID       uint64    `json:"userId"`
	Title        string    `json:"title"`
	Address      string    `json:"address"`
	PricePerHour string    `json:"pricePerHour"`
	CreatedAt    time.Time `json:"createdAt"`
}
