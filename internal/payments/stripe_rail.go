package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/account"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/transfer"

	"github.com/brickfolio/investment-service/internal/utils"
)

// StripeRail implements PaymentRail against Stripe Connect. All calls set
// an idempotency key derived from our reference id, so a retried call
// returns the original outcome instead of moving money twice.
type StripeRail struct {
	currency string
}

func NewStripeRail(secretKey, currency string) *StripeRail {
	stripe.Key = secretKey
	return &StripeRail{currency: currency}
}

// Authorize places a manual-capture hold and releases it immediately. The
// card is verified for the amount but never charged.
func (r *StripeRail) Authorize(ctx context.Context, paymentMethodRef string, amountCents int64, referenceID string) error {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amountCents),
		Currency:      stripe.String(r.currency),
		PaymentMethod: stripe.String(paymentMethodRef),
		Confirm:       stripe.Bool(true),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	params.Params.Context = ctx
	params.SetIdempotencyKey(fmt.Sprintf("%s-authorize", referenceID))

	pi, err := paymentintent.New(params)
	if err != nil {
		return r.mapError(ctx, err, "authorize")
	}

	cancelParams := &stripe.PaymentIntentCancelParams{}
	cancelParams.Params.Context = ctx
	cancelParams.SetIdempotencyKey(fmt.Sprintf("%s-authorize-release", referenceID))
	if _, err := paymentintent.Cancel(pi.ID, cancelParams); err != nil {
		// The hold expires on its own; the verification already succeeded.
		utils.Logger.WithError(err).Warnf("Failed to release authorization hold for %s", referenceID)
	}
	return nil
}

// Collect charges the payment method for real.
func (r *StripeRail) Collect(ctx context.Context, paymentMethodRef string, amountCents int64, referenceID string) error {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amountCents),
		Currency:      stripe.String(r.currency),
		PaymentMethod: stripe.String(paymentMethodRef),
		Confirm:       stripe.Bool(true),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodAutomatic)),
	}
	params.Params.Context = ctx
	params.SetIdempotencyKey(fmt.Sprintf("%s-collect", referenceID))

	if _, err := paymentintent.New(params); err != nil {
		return r.mapError(ctx, err, "collect")
	}
	return nil
}

func (r *StripeRail) Transfer(ctx context.Context, accountRef string, amountCents int64, referenceID string) error {
	acctParams := &stripe.AccountParams{}
	acctParams.Params.Context = ctx
	acct, err := account.GetByID(accountRef, acctParams)
	if err != nil {
		return r.mapError(ctx, err, "account lookup")
	}
	if !acct.PayoutsEnabled {
		return fmt.Errorf("payouts disabled for account %s: %w", accountRef, utils.ErrExternalServiceFailure)
	}

	params := &stripe.TransferParams{
		Amount:      stripe.Int64(amountCents),
		Currency:    stripe.String(r.currency),
		Destination: stripe.String(accountRef),
		Metadata:    map[string]string{"reference_id": referenceID},
	}
	params.Params.Context = ctx
	params.SetIdempotencyKey(fmt.Sprintf("%s-transfer", referenceID))

	if _, err := transfer.New(params); err != nil {
		return r.mapError(ctx, err, "transfer")
	}
	return nil
}

// TransferStatus replays the transfer under the original idempotency key.
// Stripe returns the first outcome for a replayed key, which turns an
// unknown (timed-out) transfer into a definite one without double-paying.
func (r *StripeRail) TransferStatus(ctx context.Context, accountRef string, amountCents int64, referenceID string) (TransferState, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(amountCents),
		Currency:    stripe.String(r.currency),
		Destination: stripe.String(accountRef),
		Metadata:    map[string]string{"reference_id": referenceID},
	}
	params.Params.Context = ctx
	params.SetIdempotencyKey(fmt.Sprintf("%s-transfer", referenceID))

	_, err := transfer.New(params)
	if err == nil {
		return TransferStateSucceeded, nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TransferStateUnknown, fmt.Errorf("stripe status check timed out: %w", utils.ErrExternalTimeout)
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return TransferStateFailed, nil
	}
	return TransferStateUnknown, fmt.Errorf("stripe status check: %v: %w", err, utils.ErrExternalServiceFailure)
}

func (r *StripeRail) mapError(ctx context.Context, err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return fmt.Errorf("stripe %s timed out: %w", op, utils.ErrExternalTimeout)
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return fmt.Errorf("stripe %s failed (%s): %w", op, stripeErr.Code, utils.ErrExternalServiceFailure)
	}
	return fmt.Errorf("stripe %s: %v: %w", op, err, utils.ErrExternalServiceFailure)
}
