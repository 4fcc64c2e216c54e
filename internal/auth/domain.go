package auth

import (
	"time"

	"github.com/google/uuid"
)

// Account represents an authenticated identity-provider account.
type Account struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
