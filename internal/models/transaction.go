package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TransactionType categorizes ledger entries.
type TransactionType string

const (
	TransactionTypePurchase      TransactionType = "PURCHASE"
	TransactionTypeSale          TransactionType = "SALE"
	TransactionTypeRentalIncome  TransactionType = "RENTAL_INCOME"
	TransactionTypeDeposit       TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal    TransactionType = "WITHDRAWAL"
	TransactionTypeStakingReward TransactionType = "STAKING_REWARD"
)

// TransactionStatusType defines the possible states of a ledger transaction.
// Transitions are one-way out of PENDING; a transaction never re-enters
// PENDING after leaving it.
type TransactionStatusType string

const (
	TransactionStatusPending   TransactionStatusType = "PENDING"
	TransactionStatusCompleted TransactionStatusType = "COMPLETED"
	TransactionStatusFailed    TransactionStatusType = "FAILED"
	TransactionStatusCancelled TransactionStatusType = "CANCELLED"
)

// MetadataKeyNeedsReconciliation marks a transaction whose compensating
// rollback could not be applied; the sweep reports these until resolved.
const MetadataKeyNeedsReconciliation = "needs_reconciliation"

// Transaction is one append-only ledger entry. ReferenceID is the
// caller-supplied idempotency key and is unique across the ledger.
type Transaction struct {
	ID            uuid.UUID             `json:"id"`
	UserID        uuid.UUID             `json:"user_id"`
	PropertyID    *uuid.UUID            `json:"property_id,omitempty"`
	Type          TransactionType       `json:"type"`
	AmountCents   int64                 `json:"amount_cents"`
	TokenAmount   *int64                `json:"token_amount,omitempty"`
	Status        TransactionStatusType `json:"status"`
	ReferenceID   string                `json:"reference_id"`
	FailureReason *string               `json:"failure_reason,omitempty"`
	Metadata      json.RawMessage       `json:"metadata,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

func (t *Transaction) GetID() string {
	return t.ID.String()
}

// CanTransitionTo enforces the one-way status machine.
func (t *Transaction) CanTransitionTo(next TransactionStatusType) bool {
	if t.Status == next {
		return false
	}
	if t.Status != TransactionStatusPending {
		return false
	}
	switch next {
	case TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled:
		return true
	}
	return false
}
