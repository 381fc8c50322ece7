package engine

import (
	"context"
	"errors"
	"fmt"
)

// Provider is the native compute engine boundary. Signatures follow the
// engine's C ABI: 32-bit integer arithmetic, 64-bit factorial, NUL-terminated
// strings and float64 arrays.
type Provider interface {
	Add(ctx context.Context, a, b int32) (int32, error)
	Multiply(ctx context.Context, a, b int32) (int32, error)
	Factorial(ctx context.Context, n int32) (int64, error)
	ProcessString(ctx context.Context, text string) (string, error)
	SumArray(ctx context.Context, numbers []float64) (float64, error)

	// Available reports whether the engine is loaded and callable
	Available() bool

	// Name identifies the implementation, e.g. "wasm" or "builtin"
	Name() string

	// Close releases engine resources
	Close(ctx context.Context) error
}

var (
	// ErrEngineUnavailable is returned by every call on an engine that failed to load
	ErrEngineUnavailable = errors.New("engine library not loaded")

	// ErrNegativeStatus is returned when the engine signals failure with a negative status code
	ErrNegativeStatus = errors.New("engine returned negative status")

	// ErrNonFiniteResult is returned when a floating point result overflowed
	ErrNonFiniteResult = errors.New("engine returned a non-finite result")
)

// StatusError wraps ErrNegativeStatus with the function and code that produced it
type StatusError struct {
	Function string
	Status   int64
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Function, e.Status)
}

// Unwrap lets errors.Is match ErrNegativeStatus
func (e *StatusError) Unwrap() error {
	return ErrNegativeStatus
}

// UnavailableProvider stands in for an engine that could not be loaded at
// startup. Every operation fails with ErrEngineUnavailable.
type UnavailableProvider struct {
	cause error
}

// NewUnavailableProvider creates a provider that always fails. cause is the
// load error, if any, and is included in every returned error.
func NewUnavailableProvider(cause error) *UnavailableProvider {
	return &UnavailableProvider{cause: cause}
}

func (p *UnavailableProvider) err() error {
	if p.cause == nil {
		return ErrEngineUnavailable
	}
	return fmt.Errorf("%w: %v", ErrEngineUnavailable, p.cause)
}

// Add always fails
func (p *UnavailableProvider) Add(context.Context, int32, int32) (int32, error) {
	return 0, p.err()
}

// Multiply always fails
func (p *UnavailableProvider) Multiply(context.Context, int32, int32) (int32, error) {
	return 0, p.err()
}

// Factorial always fails
func (p *UnavailableProvider) Factorial(context.Context, int32) (int64, error) {
	return 0, p.err()
}

// ProcessString always fails
func (p *UnavailableProvider) ProcessString(context.Context, string) (string, error) {
	return "", p.err()
}

// SumArray always fails
func (p *UnavailableProvider) SumArray(context.Context, []float64) (float64, error) {
	return 0, p.err()
}

// Available is always false
func (p *UnavailableProvider) Available() bool { return false }

// Name returns "unavailable"
func (p *UnavailableProvider) Name() string { return "unavailable" }

// Cause returns the load error that made the engine unavailable
func (p *UnavailableProvider) Cause() error { return p.cause }

// Close is a no-op
func (p *UnavailableProvider) Close(context.Context) error { return nil }

var _ Provider = (*UnavailableProvider)(nil)
