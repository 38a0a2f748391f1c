package models

import (
	"time"
)

// User is the minimal identity record the settlement core needs: wallet
// ownership and refund target resolution. Registration and credential
// management live in the surrounding auth service.
type User struct {
	ID        string    `json:"id" db:"id"`
	FullName  string    `json:"full_name" db:"full_name"`
	Email     string    `json:"email" db:"email"`
	Phone     string    `json:"phone" db:"phone"`
	Roles     []string  `json:"roles" db:"roles"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
