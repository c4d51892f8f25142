package models

import (
	"time"

	"github.com/google/uuid"
)

// RentalRecord captures one month of rental income for a property.
// MonthYear uses the "2006-01" layout. DistributedAt is the exactly-once
// guard: nil means not yet distributed, and it is only ever set through a
// conditional claim while still nil.
type RentalRecord struct {
	ID               uuid.UUID  `json:"id"`
	PropertyID       uuid.UUID  `json:"property_id"`
	MonthYear        string     `json:"month_year"`
	TotalIncomeCents int64      `json:"total_income_cents"`
	ExpensesCents    int64      `json:"expenses_cents"`
	NetIncomeCents   int64      `json:"net_income_cents"`
	DistributedAt    *time.Time `json:"distributed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// MonthYearLayout is the canonical format for RentalRecord.MonthYear.
const MonthYearLayout = "2006-01"
