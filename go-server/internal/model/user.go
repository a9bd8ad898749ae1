package model

import (
	"time"

	"github.com/google/uuid"
)

// User is an account that can log in and own URLs.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"hashed_password"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"date_created" db:"date_created"`
}
