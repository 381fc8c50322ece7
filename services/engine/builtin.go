package engine

import (
	"context"
	"strings"
)

// BuiltinProvider is a pure Go engine with the same observable behavior as
// the native library: wrapping 32-bit arithmetic, ASCII-only uppercasing and
// a float64 running sum. Used for development and tests.
type BuiltinProvider struct{}

// NewBuiltinProvider creates a builtin engine
func NewBuiltinProvider() *BuiltinProvider {
	return &BuiltinProvider{}
}

// Add returns a+b with two's-complement wraparound
func (p *BuiltinProvider) Add(ctx context.Context, a, b int32) (int32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return a + b, nil
}

// Multiply returns a*b with two's-complement wraparound
func (p *BuiltinProvider) Multiply(ctx context.Context, a, b int32) (int32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return a * b, nil
}

// Factorial returns n! in 64 bits, or a negative status for n < 0
func (p *BuiltinProvider) Factorial(ctx context.Context, n int32) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, &StatusError{Function: "factorial", Status: -1}
	}
	result := int64(1)
	for i := int64(2); i <= int64(n); i++ {
		result *= i
	}
	return result, nil
}

// ProcessString uppercases ASCII letters. Like the C implementation the input
// ends at the first NUL byte and non-ASCII bytes pass through unchanged.
func (p *BuiltinProvider) ProcessString(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if i := strings.IndexByte(text, 0); i >= 0 {
		text = text[:i]
	}
	out := []byte(text)
	for i, c := range out {
		if c >= 'a' && c <= 'z' {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out), nil
}

// SumArray adds the numbers left to right; an empty slice sums to 0
func (p *BuiltinProvider) SumArray(ctx context.Context, numbers []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sum := 0.0
	for _, n := range numbers {
		sum += n
	}
	return sum, nil
}

// Available is always true
func (p *BuiltinProvider) Available() bool { return true }

// Name returns "builtin"
func (p *BuiltinProvider) Name() string { return "builtin" }

// Close is a no-op
func (p *BuiltinProvider) Close(context.Context) error { return nil }

var _ Provider = (*BuiltinProvider)(nil)
