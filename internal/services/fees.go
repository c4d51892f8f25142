package services

import (
	"fmt"

	"github.com/brickfolio/investment-service/internal/constants"
	"github.com/brickfolio/investment-service/internal/utils"
)

// FeeBreakdown is the result of pricing an amount. All values are cents.
type FeeBreakdown struct {
	PlatformFeeCents   int64 `json:"platform_fee_cents"`
	ProcessingFeeCents int64 `json:"processing_fee_cents"`
	TotalFeesCents     int64 `json:"total_fees_cents"`
	NetAmountCents     int64 `json:"net_amount_cents"`
}

// FeeCalculator is a pure function of its configured rates.
type FeeCalculator struct {
	platformBps          int64
	processingBps        int64
	processingFixedCents int64
}

func NewFeeCalculator() *FeeCalculator {
	return &FeeCalculator{
		platformBps:          constants.PlatformFeeBps,
		processingBps:        constants.ProcessingFeeBps,
		processingFixedCents: constants.ProcessingFeeFixedCents,
	}
}

// CalculateFees prices amountCents. Fees are floored to the cent. An
// amount the fees would swallow entirely is rejected.
func (c *FeeCalculator) CalculateFees(amountCents int64) (*FeeBreakdown, error) {
	if amountCents <= 0 {
		return nil, fmt.Errorf("amount must be positive: %w", utils.ErrValidation)
	}

	platform := amountCents * c.platformBps / 10_000
	processing := amountCents*c.processingBps/10_000 + c.processingFixedCents
	total := platform + processing

	if total >= amountCents {
		return nil, fmt.Errorf("fees (%d) would exceed amount (%d): %w", total, amountCents, utils.ErrValidation)
	}

	return &FeeBreakdown{
		PlatformFeeCents:   platform,
		ProcessingFeeCents: processing,
		TotalFeesCents:     total,
		NetAmountCents:     amountCents - total,
	}, nil
}
