package models

import (
	"time"

	"github.com/google/uuid"
)

// Share is a user's aggregated holding in one property: token count plus
// cumulative cost basis. A share is created on first investment, merged on
// subsequent ones, and only ever zeroed, never deleted.
type Share struct {
	Versioned
	ID                 uuid.UUID `json:"id"`
	UserID             uuid.UUID `json:"user_id"`
	PropertyID         uuid.UUID `json:"property_id"`
	TokensOwned        int64     `json:"tokens_owned"`
	PurchasePriceCents int64     `json:"purchase_price_cents"`
	CurrentValueCents  int64     `json:"current_value_cents"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (s *Share) GetID() string {
	return s.ID.String()
}
