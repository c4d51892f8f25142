package controllers

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/brickfolio/investment-service/internal/dtos"
	"github.com/brickfolio/investment-service/internal/middleware"
	"github.com/brickfolio/investment-service/internal/models"
	"github.com/brickfolio/investment-service/internal/services"
	"github.com/brickfolio/investment-service/internal/utils"
)

var validate = validator.New()

type InvestmentController struct {
	investmentService *services.InvestmentService
	withdrawalService *services.WithdrawalService
	portfolioService  *services.PortfolioService
	propertyService   *services.PropertyService
}

func NewInvestmentController(
	inv *services.InvestmentService,
	wd *services.WithdrawalService,
	pf *services.PortfolioService,
	ps *services.PropertyService,
) *InvestmentController {
	return &InvestmentController{
		investmentService: inv,
		withdrawalService: wd,
		portfolioService:  pf,
		propertyService:   ps,
	}
}

// userIDFromContext pulls the authenticated user set by the auth
// middleware. Returns uuid.Nil (and writes a 401) if absent or mangled.
func userIDFromContext(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	v := r.Context().Value(middleware.ContextKeyUserID)
	if v == nil {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Missing userID in context", nil)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(v.(string))
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Malformed userID in context", nil, err)
		return uuid.Nil, false
	}
	return userID, true
}

// emailFromContext returns the authenticated user's email claim, or ""
// when the token carried none.
func emailFromContext(r *http.Request) string {
	email, _ := r.Context().Value(middleware.ContextKeyEmail).(string)
	return email
}

// POST /api/v1/investments
func (c *InvestmentController) InvestHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(w, r)
	if !ok {
		return
	}

	var req dtos.InvestmentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	txnID, err := c.investmentService.ProcessInvestment(r.Context(), services.InvestmentRequest{
		UserID:           userID,
		Email:            emailFromContext(r),
		PropertyID:       req.PropertyID,
		TokenAmount:      req.TokenAmount,
		TotalCostCents:   req.TotalCostCents,
		PaymentMethodRef: req.PaymentMethodRef,
		RequestID:        req.RequestID,
	})
	if err != nil {
		if errors.Is(err, utils.ErrExternalTimeout) {
			// The transaction exists and is PENDING; tell the caller which
			// one so they can poll.
			utils.RespondWithJSON(w, http.StatusAccepted, dtos.InvestmentResponse{
				TransactionID: txnID,
				Status:        string(models.TransactionStatusPending),
			})
			return
		}
		utils.HandleAppError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, dtos.InvestmentResponse{
		TransactionID: txnID,
		Status:        string(models.TransactionStatusCompleted),
	})
}

// POST /api/v1/withdrawals
func (c *InvestmentController) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(w, r)
	if !ok {
		return
	}

	var req dtos.WithdrawalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	txnID, err := c.withdrawalService.ProcessWithdrawal(r.Context(), services.WithdrawalRequest{
		UserID:           userID,
		Email:            emailFromContext(r),
		AmountCents:      req.AmountCents,
		Currency:         req.Currency,
		PaymentMethodRef: req.PaymentMethodRef,
		RequestID:        req.RequestID,
	})
	if err != nil {
		if errors.Is(err, utils.ErrExternalTimeout) {
			utils.RespondWithJSON(w, http.StatusAccepted, dtos.WithdrawalResponse{
				TransactionID: txnID,
				Status:        string(models.TransactionStatusPending),
			})
			return
		}
		utils.HandleAppError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, dtos.WithdrawalResponse{
		TransactionID: txnID,
		Status:        string(models.TransactionStatusCompleted),
	})
}

// POST /api/v1/deposits
func (c *InvestmentController) DepositHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(w, r)
	if !ok {
		return
	}

	var req dtos.DepositRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	txnID, err := c.propertyService.Deposit(r.Context(), services.DepositRequest{
		UserID:           userID,
		Email:            emailFromContext(r),
		AmountCents:      req.AmountCents,
		PaymentMethodRef: req.PaymentMethodRef,
		RequestID:        req.RequestID,
	})
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, dtos.DepositResponse{TransactionID: txnID})
}

// GET /api/v1/portfolio
func (c *InvestmentController) PortfolioHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(w, r)
	if !ok {
		return
	}

	summary, err := c.portfolioService.GetPortfolioSummary(r.Context(), userID)
	if err != nil {
		utils.Logger.WithError(err).Errorf("Failed to build portfolio summary for user %s", userID)
		utils.HandleAppError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, summary)
}

// GET /api/v1/transactions
func (c *InvestmentController) TransactionHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(w, r)
	if !ok {
		return
	}

	txns, err := c.portfolioService.GetTransactionHistory(r.Context(), userID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, txns)
}
