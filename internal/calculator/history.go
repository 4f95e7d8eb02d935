package calculator

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"go-chi-calculator/internal/handlers"
	"go-chi-calculator/internal/observability"
	"go-chi-calculator/internal/storage"
)

// ListHistory handles GET /calculator/history?limit=N, newest first.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerWithTrace(ctx)

	ctx, span := tracer.Start(ctx, "calculator.history.list",
		trace.WithAttributes(attribute.String("request.id", observability.RequestIDFromContext(ctx))),
	)
	defer span.End()

	if h.store == nil {
		writeFailure(ctx, span, logger, "history", errPersistenceDisabled, w)
		return
	}

	limit, err := h.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeFailure(ctx, span, logger, "history", err, w)
		return
	}
	span.SetAttributes(attribute.Int("history.limit", limit))

	records, err := h.store.List(ctx, limit)
	if err != nil {
		writeFailure(ctx, span, logger, "history", err, w)
		return
	}

	resp := make([]CalculationResponse, 0, len(records))
	for i := range records {
		resp = append(resp, newCalculationResponse(&records[i]))
	}

	span.SetAttributes(attribute.Int("history.count", len(resp)))
	span.SetStatus(codes.Ok, "")
	historyReads.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", "list")))

	logger.Debug("calculation history listed",
		zap.Int("limit", limit),
		zap.Int("count", len(resp)),
	)

	handlers.WriteJSON(w, http.StatusOK, resp)
}

// GetHistory handles GET /calculator/history/{id}.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerWithTrace(ctx)

	ctx, span := tracer.Start(ctx, "calculator.history.get",
		trace.WithAttributes(attribute.String("request.id", observability.RequestIDFromContext(ctx))),
	)
	defer span.End()

	if h.store == nil {
		writeFailure(ctx, span, logger, "history", errPersistenceDisabled, w)
		return
	}

	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeFailure(ctx, span, logger, "history", invalidRequest(err, fmt.Sprintf("id: %q is not an integer", raw)), w)
		return
	}
	span.SetAttributes(attribute.Int64("calculation.id", id))

	// Ids start at 1, so anything lower cannot exist.
	if id < 1 {
		writeFailure(ctx, span, logger, "history", storage.ErrNotFound, w)
		return
	}

	rec, err := h.store.Get(ctx, uint(id))
	if err != nil {
		writeFailure(ctx, span, logger, "history", err, w)
		return
	}

	span.SetStatus(codes.Ok, "")
	historyReads.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", "get")))
	handlers.WriteJSON(w, http.StatusOK, newCalculationResponse(rec))
}

func (h *Handler) parseLimit(raw string) (int, error) {
	if raw == "" {
		return h.defaultLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidRequest(err, fmt.Sprintf("limit: %q is not an integer", raw))
	}
	if limit < 1 || limit > h.maxLimit {
		return 0, invalidRequest(nil, fmt.Sprintf("limit: must be between 1 and %d", h.maxLimit))
	}
	return limit, nil
}
