package models

import (
	"time"

	"github.com/google/uuid"
)

type Organization struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	ModifiedAt  time.Time `json:"modified_at" db:"modified_at"`
}

type OrganizationMember struct {
	OrganizationID int64     `json:"organization_id" db:"organization_id"`
	UserID         int64     `json:"user_id" db:"user_id"`
	Role           Role      `json:"role" db:"role"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`

	// Populated on member listings via a join against users.
	UserName  string `json:"user_name,omitempty" db:"user_name"`
	UserEmail string `json:"user_email,omitempty" db:"user_email"`
}

// Invite is a single-use grant of organization membership. The secret is
// consumed by exactly one accept or reject.
type Invite struct {
	ID             int64     `json:"id" db:"id"`
	OrganizationID int64     `json:"organization_id" db:"organization_id"`
	UserID         int64     `json:"user_id" db:"user_id"`
	Email          string    `json:"email" db:"email"`
	Secret         uuid.UUID `json:"-" db:"secret"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
