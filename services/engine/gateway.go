package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/upb/engine-gateway/models"
	"github.com/upb/engine-gateway/repositories"
	"github.com/upb/engine-gateway/services"
)

// Default gateway limits
const (
	DefaultCallTimeout    = 5 * time.Second
	DefaultAuditTimeout   = 5 * time.Second
	DefaultMaxConcurrency = 8
)

// Availability messages reported by ProviderStatus
const (
	MsgEngineAvailable   = "Engine is available"
	MsgEngineUnavailable = "Engine library not found. Please compile the C++ library first."
)

// Metrics records gateway activity
type Metrics interface {
	RecordOperation(ctx context.Context, op models.OperationType, outcome OutcomeKind, duration time.Duration)
	RecordAuditWriteFailure(ctx context.Context, op models.OperationType)
}

type nopMetrics struct{}

func (nopMetrics) RecordOperation(context.Context, models.OperationType, OutcomeKind, time.Duration) {}
func (nopMetrics) RecordAuditWriteFailure(context.Context, models.OperationType)                    {}

// Options tunes a Gateway. Zero values fall back to the defaults.
type Options struct {
	CallTimeout    time.Duration
	AuditTimeout   time.Duration
	MaxConcurrency int
	Metrics        Metrics
}

// Result is what a gateway call returns to the transport layer
type Result struct {
	Operation     models.OperationType
	Value         any // int64, float64 or string; nil unless Success
	Success       bool
	Message       string
	CalculationID int64 // 0 when the audit write failed
	RequestID     string
}

// ProviderStatus describes the loaded engine
type ProviderStatus struct {
	Available bool
	Provider  string
	Message   string
}

// Gateway validates engine requests, invokes the provider and writes one
// audit record per call.
type Gateway struct {
	provider     Provider
	store        repositories.CalculationRepository
	sem          *semaphore.Weighted
	callTimeout  time.Duration
	auditTimeout time.Duration
	metrics      Metrics
	logger       *zap.Logger
	now          func() time.Time
}

// NewGateway creates a gateway over the given provider and audit store
func NewGateway(provider Provider, store repositories.CalculationRepository, opts Options, logger *zap.Logger) *Gateway {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.AuditTimeout <= 0 {
		opts.AuditTimeout = DefaultAuditTimeout
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	return &Gateway{
		provider:     provider,
		store:        store,
		sem:          semaphore.NewWeighted(int64(opts.MaxConcurrency)),
		callTimeout:  opts.CallTimeout,
		auditTimeout: opts.AuditTimeout,
		metrics:      opts.Metrics,
		logger:       logger,
		now:          time.Now,
	}
}

type requestIDKey struct{}

// WithRequestID attaches the HTTP request id recorded in audit records
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request id set by WithRequestID
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// Execute runs one engine operation and persists its audit record.
//
// The returned Result is never nil. On a rejected request the error is a
// services validation error; on an engine failure it is a services external
// error. Audit write failures are logged and never surface here.
func (g *Gateway) Execute(ctx context.Context, req OperationRequest) (*Result, error) {
	requestID, ok := RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	op := req.Operation()

	input, err := CanonicalInput(req)
	if err != nil {
		g.logger.Error("failed to canonicalize engine input", zap.String("operation", string(op)), zap.Error(err))
		input = "{}"
	}

	outcome, duration := g.run(ctx, req)

	calc := models.NewCalculation(op, input).WithRequest(requestID, duration)
	if outcome.Succeeded() {
		calc.WithResult(outcome.Value, outcome.Message)
	} else {
		calc.WithFailure(outcome.Message)
	}
	g.audit(ctx, calc)

	g.metrics.RecordOperation(ctx, op, outcome.Kind, duration)
	g.logOutcome(op, requestID, outcome, duration)

	result := &Result{
		Operation:     op,
		Success:       outcome.Succeeded(),
		Message:       outcome.Message,
		CalculationID: calc.ID,
		RequestID:     requestID,
	}

	switch outcome.Kind {
	case OutcomeSuccess:
		result.Value = outcome.Value
		return result, nil
	case OutcomeRejected:
		return result, services.NewValidationFailed(outcome.Message).
			WithDetail("operation", string(op))
	default:
		return result, services.NewProviderInvocationFailed(outcome.Message, outcome.Err).
			WithDetail("operation", string(op))
	}
}

// Add adds a and b
func (g *Gateway) Add(ctx context.Context, a, b int64) (*Result, error) {
	return g.Execute(ctx, AddRequest{A: a, B: b})
}

// Multiply multiplies a and b
func (g *Gateway) Multiply(ctx context.Context, a, b int64) (*Result, error) {
	return g.Execute(ctx, MultiplyRequest{A: a, B: b})
}

// Factorial computes n!
func (g *Gateway) Factorial(ctx context.Context, n int64) (*Result, error) {
	return g.Execute(ctx, FactorialRequest{N: n})
}

// ProcessString uppercases text
func (g *Gateway) ProcessString(ctx context.Context, text string) (*Result, error) {
	return g.Execute(ctx, ProcessStringRequest{Text: text})
}

// SumArray sums numbers
func (g *Gateway) SumArray(ctx context.Context, numbers []float64) (*Result, error) {
	return g.Execute(ctx, SumArrayRequest{Numbers: numbers})
}

// ProviderStatus reports whether the engine is loaded. It is not audited.
func (g *Gateway) ProviderStatus() ProviderStatus {
	status := ProviderStatus{
		Available: g.provider.Available(),
		Provider:  g.provider.Name(),
		Message:   MsgEngineUnavailable,
	}
	if status.Available {
		status.Message = MsgEngineAvailable
	}
	return status
}

// Calculations lists audit records newest first
func (g *Gateway) Calculations(ctx context.Context, limit, offset int) ([]*models.Calculation, error) {
	offset, limit, err := services.NormalizePage(offset, limit)
	if err != nil {
		return nil, err
	}
	calcs, err := g.store.List(ctx, limit, offset)
	if err != nil {
		return nil, services.WrapInternal("failed to list calculations", err)
	}
	return calcs, nil
}

// Calculation retrieves one audit record
func (g *Gateway) Calculation(ctx context.Context, id int64) (*models.Calculation, error) {
	calc, err := g.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrCalculationNotFound
		}
		return nil, services.WrapInternal("failed to get calculation", err)
	}
	return calc, nil
}

// run validates and invokes. The duration covers only the provider call.
func (g *Gateway) run(ctx context.Context, req OperationRequest) (Outcome, time.Duration) {
	if reason := req.validate(); reason != "" {
		return rejected(reason), 0
	}

	if sum, ok := req.(SumArrayRequest); ok && len(sum.Numbers) == 0 {
		return success(0.0, req.successMessage()), 0
	}

	start := g.now()
	value, err := g.invoke(ctx, req)
	duration := g.now().Sub(start)
	if err != nil {
		return providerFailure(err), duration
	}
	return success(value, req.successMessage()), duration
}

type invokeReply struct {
	value any
	err   error
}

// invoke calls the provider under the concurrency bound and call timeout.
// A provider that ignores its context is abandoned at the deadline; its
// semaphore slot is released when it eventually returns.
func (g *Gateway) invoke(ctx context.Context, req OperationRequest) (any, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	if err := g.sem.Acquire(callCtx, 1); err != nil {
		return nil, fmt.Errorf("engine busy: %w", err)
	}

	done := make(chan invokeReply, 1)
	go func() {
		defer g.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				done <- invokeReply{err: fmt.Errorf("engine panicked: %v", r)}
			}
		}()
		v, err := req.invoke(callCtx, g.provider)
		done <- invokeReply{value: v, err: err}
	}()

	select {
	case reply := <-done:
		return reply.value, reply.err
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("call timed out after %s", g.callTimeout)
		}
		return nil, callCtx.Err()
	}
}

// audit inserts the record with a context detached from request cancellation
func (g *Gateway) audit(ctx context.Context, calc *models.Calculation) {
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.auditTimeout)
	defer cancel()

	if err := g.store.Insert(auditCtx, calc); err != nil {
		g.metrics.RecordAuditWriteFailure(ctx, calc.OperationType)
		g.logger.Error("failed to write calculation audit record",
			zap.String("operation", string(calc.OperationType)),
			zap.String("request_id", calc.RequestID),
			zap.Bool("success", calc.Success),
			zap.Error(services.NewAuditWriteFailed(err)),
		)
	}
}

func (g *Gateway) logOutcome(op models.OperationType, requestID string, outcome Outcome, duration time.Duration) {
	fields := []zap.Field{
		zap.String("operation", string(op)),
		zap.String("outcome", outcome.Kind.String()),
		zap.String("request_id", requestID),
		zap.Duration("duration", duration),
	}
	switch outcome.Kind {
	case OutcomeSuccess:
		g.logger.Info("engine operation completed", fields...)
	case OutcomeRejected:
		g.logger.Warn("engine operation rejected", append(fields, zap.String("reason", outcome.Message))...)
	default:
		g.logger.Warn("engine operation failed", append(fields, zap.Error(outcome.Err))...)
	}
}
