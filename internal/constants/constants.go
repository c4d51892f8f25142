package constants

import "time"

// Investment Business Logic
const (
	MinInvestmentCents = 10_000     // $100 minimum buy-in
	MaxInvestmentCents = 10_000_000 // $100,000 per single purchase
	MinWithdrawalCents = 1_000      // $10 minimum payout
	DefaultCurrency    = "usd"
)

// Fee schedule. Platform fee is charged in basis points of the gross
// amount; the processing fee mirrors a card rail (bps + fixed).
const (
	PlatformFeeBps          = 250 // 2.5%
	ProcessingFeeBps        = 290 // 2.9%
	ProcessingFeeFixedCents = 30
)

// Failure reasons recorded on transactions. Standardizing these keeps
// recovery logic and log queries sane.
const (
	ReasonPropertyNotActive     = "property_not_active"
	ReasonInsufficientTokens    = "insufficient_tokens"
	ReasonInsufficientFunds     = "insufficient_funds"
	ReasonPaymentDeclined       = "payment_rail_declined"
	ReasonShareUpsertFailed     = "share_upsert_failed"
	ReasonAuditWriteFailed      = "audit_write_failed"
	ReasonCompensationSucceeded = "rolled_back_after_failure"
)

// Reconciliation Sweep Scheduling and Timeouts
const (
	ReconciliationCronSpec  = "*/15 * * * *" // every 15 minutes, UTC
	ReconciliationTimeout   = 5 * time.Minute
	PendingWithdrawalCutoff = 30 * time.Minute
	RailCallTimeout         = 15 * time.Second
)

// API paging
const (
	TransactionHistoryLimit = 100
)
