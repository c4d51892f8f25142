package models

import (
	"time"

	"github.com/google/uuid"
)

// AccountBalance is a user's internal cash position in minor currency
// units. It is never negative; debits go through the row_version CAS path
// and fail rather than overdraw.
type AccountBalance struct {
	Versioned
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email,omitempty"`
	Currency     string    `json:"currency"`
	BalanceCents int64     `json:"balance_cents"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (b *AccountBalance) GetID() string {
	return b.ID.String()
}
