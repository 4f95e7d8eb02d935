package calculator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"go-chi-calculator/internal/handlers"
	"go-chi-calculator/internal/observability"
	"go-chi-calculator/internal/storage"
)

// tracer is the calculator's dedicated OpenTelemetry tracer.
var tracer = otel.Tracer("calculator")

const (
	defaultMaxBodyBytes = 1 << 20
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// Store is the persistence the handler records calculations in.
type Store interface {
	Create(ctx context.Context, rec *storage.Record, checks ...storage.Check) error
	Get(ctx context.Context, id uint) (*storage.Record, error)
	List(ctx context.Context, limit int) ([]storage.Record, error)
}

// Handler serves the calculator endpoints. Without a store it runs the
// database-free variant: results are computed and returned but not recorded,
// and history endpoints answer 503.
type Handler struct {
	store        Store
	maxBodyBytes int64
	defaultLimit int
	maxLimit     int
}

type Option func(*Handler)

// WithHistoryLimits sets the limit used when ?limit= is absent and the
// largest limit a caller may request.
func WithHistoryLimits(defaultLimit, maxLimit int) Option {
	return func(h *Handler) {
		h.defaultLimit = defaultLimit
		h.maxLimit = maxLimit
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) { h.maxBodyBytes = n }
}

// NewHandler returns a handler recording into store. Pass a nil store for
// the database-free variant.
func NewHandler(store Store, opts ...Option) *Handler {
	h := &Handler{
		store:        store,
		maxBodyBytes: defaultMaxBodyBytes,
		defaultLimit: defaultHistoryLimit,
		maxLimit:     maxHistoryLimit,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Persistent reports whether calculations are recorded.
func (h *Handler) Persistent() bool { return h.store != nil }

func (h *Handler) operationHandler(op operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.handleOperation(w, r, op)
	}
}

// handleOperation is the shared implementation for every calculator
// operation: decode and validate the body, compute, record, respond.
func (h *Handler) handleOperation(w http.ResponseWriter, r *http.Request, op operation) {
	ctx := r.Context()
	logger := observability.LoggerWithTrace(ctx)
	requestID := observability.RequestIDFromContext(ctx)

	ctx, span := tracer.Start(ctx, fmt.Sprintf("calculator.%s", op.name),
		trace.WithAttributes(
			attribute.String("calculator.operation", op.name),
			attribute.String("request.id", requestID),
			attribute.Bool("calculator.persistent", h.Persistent()),
		),
	)
	defer span.End()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		writeFailure(ctx, span, logger, op.name, invalidRequest(err, "request body could not be read"), w)
		return
	}

	in, err := op.shape.parse(body)
	if err != nil {
		writeFailure(ctx, span, logger, op.name, err, w)
		return
	}
	span.SetAttributes(operandAttributes(in)...)

	start := time.Now()
	result, err := evaluate(op, in)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0 // ms

	if err != nil {
		writeFailure(ctx, span, logger, op.name, err, w)
		return
	}

	attrs := metric.WithAttributes(attribute.String("operation", op.name))
	opsCounter.Add(ctx, 1, attrs)
	opsHistogram.Record(ctx, elapsed, attrs)
	resultGauge.Record(ctx, result, attrs)
	if in.Numbers != nil {
		listSizes.Record(ctx, int64(len(in.Numbers)), attrs)
	}

	span.AddEvent("computation.complete", trace.WithAttributes(
		attribute.Float64("result", result),
		attribute.Float64("duration_ms", elapsed),
	))
	span.SetAttributes(attribute.Float64("calculator.result", result))

	rec, err := newRecord(op.name, in, result)
	if err != nil {
		writeFailure(ctx, span, logger, op.name, err, w)
		return
	}

	if h.store != nil {
		if err := h.persist(ctx, rec, result); err != nil {
			writeFailure(ctx, span, logger, op.name, err, w)
			return
		}
		recordsCounter.Add(ctx, 1, attrs)
		span.SetAttributes(attribute.Int64("calculation.id", int64(rec.ID)))
	}

	span.SetStatus(codes.Ok, "")

	logger.Info("calculator operation completed",
		zap.String("operation", op.name),
		zap.Float64("result", result),
		zap.Uint("calculation_id", rec.ID),
		zap.String("request_id", requestID),
		zap.Float64("duration_ms", elapsed),
	)

	handlers.WriteJSON(w, http.StatusOK, newCalculationResponse(rec))
}

// persist writes rec. The row is committed only if, as stored, it still
// reproduces result.
func (h *Handler) persist(ctx context.Context, rec *storage.Record, result float64) error {
	return h.store.Create(ctx, rec, func(stored *storage.Record) error {
		replayed, err := Replay(stored)
		if err != nil {
			return fmt.Errorf("replaying calculation %d: %w", stored.ID, err)
		}
		if replayed != stored.Result || stored.Result != result {
			return fmt.Errorf("calculation %d: %w (stored %g, replayed %g, computed %g)",
				stored.ID, errReplayMismatch, stored.Result, replayed, result)
		}
		return nil
	})
}

func newRecord(opName string, in Operands, result float64) (*storage.Record, error) {
	rec := &storage.Record{
		Operation: opName,
		Operand1:  in.Operand1,
		Operand2:  in.Operand2,
		Result:    result,
	}

	if in.Numbers != nil {
		encoded, err := encodeNumbers(in.Numbers)
		if err != nil {
			return nil, err
		}
		rec.OperandsList = &encoded
	}

	return rec, nil
}

func operandAttributes(in Operands) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if in.Operand1 != nil {
		attrs = append(attrs, attribute.Float64("calculator.operand1", *in.Operand1))
	}
	if in.Operand2 != nil {
		attrs = append(attrs, attribute.Float64("calculator.operand2", *in.Operand2))
	}
	if in.Numbers != nil {
		attrs = append(attrs, attribute.Int("calculator.numbers.count", len(in.Numbers)))
	}
	return attrs
}
