// Package notifications delivers best-effort user notifications. Failures
// are logged and never propagate into the calling operation.
package notifications

import "context"

type EventType string

const (
	EventInvestmentCompleted EventType = "investment_completed"
	EventWithdrawalCompleted EventType = "withdrawal_completed"
	EventWithdrawalFailed    EventType = "withdrawal_failed"
	EventRentalIncomePaid    EventType = "rental_income_paid"
)

// Event carries what a notification channel needs to render a message.
type Event struct {
	UserID      string
	Email       string
	Type        EventType
	AmountCents int64
	Detail      string
}

// Notifier is fire-and-forget: implementations must not block the caller
// beyond the context deadline and must not return operational state the
// core would act on.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}
