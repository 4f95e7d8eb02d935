package calculator

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"go-chi-calculator/internal/arith"
	"go-chi-calculator/internal/observability"
	"go-chi-calculator/internal/storage"
)

// Stable error codes carried in the "error" field of error responses.
const (
	CodeValidation         = "validation_error"
	CodeDivisionByZero     = "division_by_zero"
	CodeInvalidDomain      = "invalid_domain"
	CodeNotFound           = "not_found"
	CodeStorageUnavailable = "storage_unavailable"
	CodeInternal           = "internal_error"
)

var (
	errPersistenceDisabled = fmt.Errorf("%w: calculation history requires a database", storage.ErrUnavailable)
	errReplayMismatch      = errors.New("stored calculation does not reproduce its result")
)

// classify maps an error to its HTTP status, code and client-facing detail.
func classify(err error) (status int, code, detail string) {
	var validationErr *ValidationError
	var domainErr *arith.Error

	switch {
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity, CodeValidation, validationErr.Error()
	case errors.As(err, &domainErr) && errors.Is(domainErr, arith.ErrDivisionByZero):
		return http.StatusBadRequest, CodeDivisionByZero, domainErr.Reason
	case errors.As(err, &domainErr):
		return http.StatusBadRequest, CodeInvalidDomain, domainErr.Reason
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, CodeNotFound, "Calculation not found"
	case errors.Is(err, errPersistenceDisabled):
		return http.StatusServiceUnavailable, CodeStorageUnavailable, "Calculation history is not available: running without a database"
	case errors.Is(err, storage.ErrUnavailable):
		return http.StatusServiceUnavailable, CodeStorageUnavailable, "Calculation storage is unavailable"
	default:
		return http.StatusInternalServerError, CodeInternal, "Internal server error"
	}
}

func writeFailure(ctx context.Context, span trace.Span, logger *zap.Logger, opName string, err error, w http.ResponseWriter) {
	status, code, detail := classify(err)
	observability.RecordError(ctx, span, logger, errorCounter, opName, code, detail, err, status, w)
}
