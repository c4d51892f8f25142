package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditCreate AuditAction = "CREATE"
	AuditUpdate AuditAction = "UPDATE"
	AuditDebit  AuditAction = "DEBIT"
	AuditCredit AuditAction = "CREDIT"
)

type AuditTargetType string

const (
	TargetProperty     AuditTargetType = "PROPERTY"
	TargetShare        AuditTargetType = "SHARE"
	TargetTransaction  AuditTargetType = "TRANSACTION"
	TargetRentalRecord AuditTargetType = "RENTAL_RECORD"
	TargetBalance      AuditTargetType = "ACCOUNT_BALANCE"
)

// AuditLogEntry is an append-only record of one mutation, written in the
// same unit of work as the mutation it documents. OldValues/NewValues hold
// JSON snapshots of the touched fields.
type AuditLogEntry struct {
	ID         uuid.UUID        `json:"id"`
	Action     AuditAction      `json:"action"`
	TargetID   uuid.UUID        `json:"target_id"`
	TargetType AuditTargetType  `json:"target_type"`
	ActorID    uuid.UUID        `json:"actor_id"`
	OldValues  *json.RawMessage `json:"old_values,omitempty"`
	NewValues  *json.RawMessage `json:"new_values,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}
