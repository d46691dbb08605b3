package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Session tracks a single login. Logout flips Valid to false; the flag
// never returns to true.
type Session struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Valid     bool      `json:"valid" db:"valid"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
