package dtos

import "github.com/google/uuid"

// InvestmentRequest buys tokens in a property. RequestID is the client's
// idempotency key; retries with the same ID return the original result.
type InvestmentRequest struct {
	PropertyID       uuid.UUID `json:"property_id" validate:"required"`
	TokenAmount      int64     `json:"token_amount" validate:"required,gt=0"`
	TotalCostCents   int64     `json:"total_cost_cents" validate:"required,gt=0"`
	PaymentMethodRef string    `json:"payment_method_ref" validate:"required"`
	RequestID        string    `json:"request_id" validate:"required"`
}

// InvestmentResponse returns the ledger transaction created (or found,
// on an idempotent replay).
type InvestmentResponse struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Status        string    `json:"status"`
}

// WithdrawalRequest moves internal balance out to an external account.
// Currency is optional and must match the balance's currency when given.
type WithdrawalRequest struct {
	AmountCents      int64  `json:"amount_cents" validate:"required,gt=0"`
	Currency         string `json:"currency" validate:"omitempty,len=3"`
	PaymentMethodRef string `json:"payment_method_ref" validate:"required"`
	RequestID        string `json:"request_id" validate:"required"`
}

// WithdrawalResponse mirrors InvestmentResponse. Status "PENDING" means
// the rail timed out and the sweep will finish the job.
type WithdrawalResponse struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Status        string    `json:"status"`
}

// DepositRequest funds the caller's internal balance.
type DepositRequest struct {
	AmountCents      int64  `json:"amount_cents" validate:"required,gt=0"`
	PaymentMethodRef string `json:"payment_method_ref" validate:"required"`
	RequestID        string `json:"request_id" validate:"required"`
}

type DepositResponse struct {
	TransactionID uuid.UUID `json:"transaction_id"`
}
