package models

import (
	"time"

	"github.com/google/uuid"
)

// PropertyStatusType defines the lifecycle states of a listed property.
type PropertyStatusType string

const (
	PropertyStatusDraft     PropertyStatusType = "DRAFT"
	PropertyStatusActive    PropertyStatusType = "ACTIVE"
	PropertyStatusSuspended PropertyStatusType = "SUSPENDED"
)

// Property is a listed real-world property whose ownership is split into
// a fixed supply of tokens. TotalTokens never changes after creation;
// AvailableTokens is the contended field and is only ever updated through
// the row_version CAS path.
type Property struct {
	Versioned
	ID                 uuid.UUID          `json:"id"`
	Name               string             `json:"name"`
	Address            string             `json:"address"`
	City               string             `json:"city"`
	State              string             `json:"state"`
	TotalTokens        int64              `json:"total_tokens"`
	AvailableTokens    int64              `json:"available_tokens"`
	PricePerTokenCents int64              `json:"price_per_token_cents"`
	Status             PropertyStatusType `json:"status"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

func (p *Property) GetID() string {
	return p.ID.String()
}
