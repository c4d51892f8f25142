package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/brickfolio/investment-service/internal/constants"
	"github.com/brickfolio/investment-service/internal/models"
	"github.com/brickfolio/investment-service/internal/repositories"
	"github.com/brickfolio/investment-service/internal/utils"
)

// PortfolioSummary aggregates a user's position across all properties.
// TotalReturn can be negative.
type PortfolioSummary struct {
	CurrentValueCents      int64 `json:"current_value_cents"`
	TotalInvestedCents     int64 `json:"total_invested_cents"`
	TotalReturnCents       int64 `json:"total_return_cents"`
	TotalRentalIncomeCents int64 `json:"total_rental_income_cents"`
	PropertiesCount        int   `json:"properties_count"`
	BalanceCents           int64 `json:"balance_cents"`
}

type PortfolioService struct {
	shareRepo   repositories.ShareRepository
	txnRepo     repositories.TransactionRepository
	balanceRepo repositories.BalanceRepository
}

func NewPortfolioService(
	shareRepo repositories.ShareRepository,
	txnRepo repositories.TransactionRepository,
	balanceRepo repositories.BalanceRepository,
) *PortfolioService {
	return &PortfolioService{shareRepo: shareRepo, txnRepo: txnRepo, balanceRepo: balanceRepo}
}

// GetPortfolioSummary computes the user's aggregate position. Holdings
// that have been sold down to zero tokens do not count as properties but
// their realized history still shows in rental income.
func (s *PortfolioService) GetPortfolioSummary(ctx context.Context, userID uuid.UUID) (*PortfolioSummary, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required: %w", utils.ErrValidation)
	}

	shares, err := s.shareRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &PortfolioSummary{}
	for _, sh := range shares {
		summary.CurrentValueCents += sh.CurrentValueCents
		summary.TotalInvestedCents += sh.PurchasePriceCents
		if sh.TokensOwned > 0 {
			summary.PropertiesCount++
		}
	}
	summary.TotalReturnCents = summary.CurrentValueCents - summary.TotalInvestedCents

	if summary.TotalRentalIncomeCents, err = s.txnRepo.FindRentalIncomeTotal(ctx, userID); err != nil {
		return nil, err
	}

	balance, err := s.balanceRepo.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance != nil {
		summary.BalanceCents = balance.BalanceCents
	}
	return summary, nil
}

// GetTransactionHistory returns the user's most recent ledger entries,
// newest first, capped at the service-wide history limit.
func (s *PortfolioService) GetTransactionHistory(ctx context.Context, userID uuid.UUID) ([]*models.Transaction, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required: %w", utils.ErrValidation)
	}
	return s.txnRepo.FindByUser(ctx, userID, constants.TransactionHistoryLimit)
}
