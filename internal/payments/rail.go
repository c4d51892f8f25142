// Package payments abstracts the external payment rail. The core never
// branches on which implementation it holds; the real Stripe adapter or
// the deterministic fake is chosen once at construction time.
package payments

import "context"

// TransferState is the rail's view of a transfer identified by our
// reference id.
type TransferState string

const (
	TransferStateSucceeded TransferState = "SUCCEEDED"
	TransferStateFailed    TransferState = "FAILED"
	TransferStateUnknown   TransferState = "UNKNOWN"
)

// PaymentRail is the collaborator contract for moving money in and out of
// the platform. All calls are idempotent on the supplied reference id,
// and all may be slow; callers bound them with a context deadline.
type PaymentRail interface {
	// Authorize verifies that amountCents could be collected from the
	// given payment method. No funds move; purchases settle against the
	// internal balance and only need the verification.
	Authorize(ctx context.Context, paymentMethodRef string, amountCents int64, referenceID string) error

	// Collect pulls amountCents from the given payment method. Deposits
	// use it to fund the internal balance.
	Collect(ctx context.Context, paymentMethodRef string, amountCents int64, referenceID string) error

	// Transfer pushes amountCents out to the given account.
	Transfer(ctx context.Context, accountRef string, amountCents int64, referenceID string) error

	// TransferStatus resolves the outcome of a previously attempted
	// transfer. The reconciliation sweep uses it for transfers whose
	// original call timed out.
	TransferStatus(ctx context.Context, accountRef string, amountCents int64, referenceID string) (TransferState, error)
}
