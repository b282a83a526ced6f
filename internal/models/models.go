package models

import (
	"time"

	"github.com/gofrs/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id" gorm:"primaryKey;type:text"`
	Name         string    `json:"name" gorm:"not null;type:text"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null;type:text"`
	PasswordHash string    `json:"-" gorm:"not null;type:text"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Identity is the caller resolved from a validated bearer token.
// BlacklistUntil is how long the token stays usable for any purpose,
// refresh included.
type Identity struct {
	UserID         uuid.UUID
	TokenID        string
	IssuedAt       time.Time
	ExpiresAt      time.Time
	BlacklistUntil time.Time
}
