package utils

import (
	"errors"
	"net/http"
)

// Domain-level errors used by the service layer to provide
// fine-grained failure reasons.
var (
	ErrValidation         = errors.New("validation_error")
	ErrNotFound           = errors.New("not_found")
	ErrInsufficientFunds  = errors.New("insufficient_funds")
	ErrInsufficientTokens = errors.New("insufficient_tokens")
	ErrAlreadyDistributed = errors.New("already_distributed")
	ErrDuplicateReference = errors.New("duplicate_reference")

	// For concurrency conflicts
	ErrRowVersionConflict  = errors.New("row_version_conflict")
	ErrConcurrencyConflict = errors.New("concurrency_conflict")

	// For external service failures (payment rail, email)
	ErrExternalServiceFailure = errors.New("external_service_failure")
	ErrExternalTimeout        = errors.New("external_service_timeout")

	// For audit writes; an operation that cannot record its audit trail fails.
	ErrAuditWriteFailed = errors.New("audit_write_failed")

	ErrNoRowsUpdated = errors.New("no_rows_updated")
)

// AppError for structured error handling from services to controllers.
type AppError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HandleAppError centralizes responding to AppErrors.
func HandleAppError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		RespondErrorWithCode(w, appErr.StatusCode, appErr.Code, appErr.Message, nil, appErr.Err)
		return
	}

	// Map well-known sentinel errors to stable HTTP responses so service
	// code can return them bare.
	switch {
	case errors.Is(err, ErrValidation):
		RespondErrorWithCode(w, http.StatusBadRequest, ErrCodeValidation, err.Error(), nil, err)
	case errors.Is(err, ErrNotFound):
		RespondErrorWithCode(w, http.StatusNotFound, ErrCodeNotFound, err.Error(), nil, err)
	case errors.Is(err, ErrInsufficientFunds):
		RespondErrorWithCode(w, http.StatusUnprocessableEntity, ErrCodeInsufficientFunds, "Insufficient balance for this operation", nil, err)
	case errors.Is(err, ErrInsufficientTokens):
		RespondErrorWithCode(w, http.StatusConflict, ErrCodeInsufficientTokens, "Not enough tokens available", nil, err)
	case errors.Is(err, ErrAlreadyDistributed):
		RespondErrorWithCode(w, http.StatusConflict, ErrCodeAlreadyDistributed, "Rental income already distributed for this period", nil, err)
	case errors.Is(err, ErrConcurrencyConflict), errors.Is(err, ErrRowVersionConflict):
		RespondErrorWithCode(w, http.StatusConflict, ErrCodeRowVersionConflict, "Concurrent update conflict, please retry", nil, err)
	case errors.Is(err, ErrExternalTimeout):
		RespondErrorWithCode(w, http.StatusAccepted, ErrCodeExternalTimeout, "Operation accepted; external confirmation pending", nil, err)
	case errors.Is(err, ErrExternalServiceFailure):
		RespondErrorWithCode(w, http.StatusBadGateway, ErrCodeExternalServiceFailure, "Upstream payment service failure", nil, err)
	default:
		RespondErrorWithCode(w, http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred", nil, err)
	}
}
