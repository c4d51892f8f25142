package payments

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/brickfolio/investment-service/internal/utils"
)

// Well-known account refs that trigger failure paths in the fake rail,
// mirroring how Stripe's pre-configured test accounts drive scenarios.
const (
	FakeAccountDeclined = "acct_declined"
	FakeAccountTimeout  = "acct_timeout"
)

// FakeRail is a deterministic in-process PaymentRail. Outcomes depend only
// on the account ref, and every call is recorded per reference id so
// TransferStatus behaves like a real idempotent rail: a reference that
// timed out on first contact resolves to success on re-check.
type FakeRail struct {
	mu          sync.Mutex
	transfers   map[string]TransferState
	collections map[string]int64
}

func NewFakeRail() *FakeRail {
	return &FakeRail{
		transfers:   make(map[string]TransferState),
		collections: make(map[string]int64),
	}
}

func (r *FakeRail) Authorize(ctx context.Context, paymentMethodRef string, amountCents int64, referenceID string) error {
	if strings.HasPrefix(paymentMethodRef, FakeAccountDeclined) {
		return fmt.Errorf("fake rail declined %s: %w", paymentMethodRef, utils.ErrExternalServiceFailure)
	}
	if strings.HasPrefix(paymentMethodRef, FakeAccountTimeout) {
		return fmt.Errorf("fake rail timed out: %w", utils.ErrExternalTimeout)
	}
	return nil
}

func (r *FakeRail) Collect(ctx context.Context, paymentMethodRef string, amountCents int64, referenceID string) error {
	if strings.HasPrefix(paymentMethodRef, FakeAccountDeclined) {
		return fmt.Errorf("fake rail declined %s: %w", paymentMethodRef, utils.ErrExternalServiceFailure)
	}
	if strings.HasPrefix(paymentMethodRef, FakeAccountTimeout) {
		return fmt.Errorf("fake rail timed out: %w", utils.ErrExternalTimeout)
	}
	r.mu.Lock()
	r.collections[referenceID] += amountCents
	r.mu.Unlock()
	return nil
}

// CollectedCents reports how much has been charged under a reference id.
func (r *FakeRail) CollectedCents(referenceID string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collections[referenceID]
}

// TotalCollectedCents reports everything charged across all references.
func (r *FakeRail) TotalCollectedCents() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, c := range r.collections {
		total += c
	}
	return total
}

func (r *FakeRail) Transfer(ctx context.Context, accountRef string, amountCents int64, referenceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.HasPrefix(accountRef, FakeAccountDeclined) {
		r.transfers[referenceID] = TransferStateFailed
		return fmt.Errorf("fake rail declined %s: %w", accountRef, utils.ErrExternalServiceFailure)
	}
	if strings.HasPrefix(accountRef, FakeAccountTimeout) {
		// The transfer actually lands, but the caller never hears back.
		r.transfers[referenceID] = TransferStateSucceeded
		return fmt.Errorf("fake rail timed out: %w", utils.ErrExternalTimeout)
	}
	r.transfers[referenceID] = TransferStateSucceeded
	return nil
}

func (r *FakeRail) TransferStatus(ctx context.Context, accountRef string, amountCents int64, referenceID string) (TransferState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.transfers[referenceID]
	if !ok {
		return TransferStateUnknown, nil
	}
	return state, nil
}
