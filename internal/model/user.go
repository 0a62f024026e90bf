package model

import "time"

// User mirrors the users table.  Accounts are managed by the auth service;
// this service only reads them to resolve reservation and payment owners.
//
// Fields:
//  ID        – users.id
//  Email     – unique email address
//  Name      – display name
//  CreatedAt – creation timestamp
type User struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}
