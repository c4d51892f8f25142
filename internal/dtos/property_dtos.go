package dtos

import "github.com/google/uuid"

// CreatePropertyRequest lists a new property. It starts in DRAFT.
type CreatePropertyRequest struct {
	Name               string `json:"name" validate:"required"`
	Address            string `json:"address" validate:"required"`
	City               string `json:"city" validate:"required"`
	State              string `json:"state" validate:"required"`
	TotalTokens        int64  `json:"total_tokens" validate:"required,gt=0"`
	PricePerTokenCents int64  `json:"price_per_token_cents" validate:"required,gt=0"`
}

// UpdatePropertyStatusRequest moves a property between lifecycle states.
type UpdatePropertyStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE SUSPENDED"`
}

// RentalRecordRequest files one month of rental income for a property.
type RentalRecordRequest struct {
	MonthYear        string `json:"month_year" validate:"required"`
	TotalIncomeCents int64  `json:"total_income_cents" validate:"gte=0"`
	ExpensesCents    int64  `json:"expenses_cents" validate:"gte=0"`
}

// DistributeRequest triggers the payout of a filed month.
type DistributeRequest struct {
	MonthYear string `json:"month_year" validate:"required"`
}

// DistributeResponse summarizes the completed payout.
type DistributeResponse struct {
	RentalRecordID   uuid.UUID `json:"rental_record_id"`
	PropertyID       uuid.UUID `json:"property_id"`
	MonthYear        string    `json:"month_year"`
	NetIncomeCents   int64     `json:"net_income_cents"`
	HoldersPaid      int       `json:"holders_paid"`
	DistributedCents int64     `json:"distributed_cents"`
}
