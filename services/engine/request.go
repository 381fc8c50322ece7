package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/gowebpki/jcs"

	"github.com/upb/engine-gateway/models"
)

// MaxFactorialInput is the largest n accepted by the factorial operation.
// 20! is the largest factorial that fits in an int64.
const MaxFactorialInput = 20

// Rejection messages returned to clients
const (
	MsgFactorialNegative = "Factorial is not defined for negative numbers"
	MsgFactorialOverflow = "Factorial for numbers > 20 may cause overflow"
	MsgTextNotUTF8       = "Text must be valid UTF-8"
	MsgNumbersNotFinite  = "Numbers must be finite"
)

// maxSafeInteger is the largest integer a JSON number can carry without loss
// in an IEEE-754 double.
const maxSafeInteger = 1<<53 - 1

// OperationRequest is one engine call. Exactly one of AddRequest,
// MultiplyRequest, FactorialRequest, ProcessStringRequest or SumArrayRequest.
type OperationRequest interface {
	// Operation returns the audit operation type
	Operation() models.OperationType

	inputs() map[string]any
	validate() string
	invoke(ctx context.Context, p Provider) (any, error)
	successMessage() string
}

// AddRequest adds two integers. Values are narrowed to 32 bits by
// two's-complement truncation before reaching the engine.
type AddRequest struct {
	A int64
	B int64
}

func (r AddRequest) Operation() models.OperationType { return models.OperationAdd }

func (r AddRequest) inputs() map[string]any {
	return map[string]any{"a": canonicalInt(r.A), "b": canonicalInt(r.B)}
}

func (r AddRequest) validate() string { return "" }

func (r AddRequest) invoke(ctx context.Context, p Provider) (any, error) {
	v, err := p.Add(ctx, int32(r.A), int32(r.B))
	return int64(v), err
}

func (r AddRequest) successMessage() string {
	return fmt.Sprintf("Successfully added %d + %d", r.A, r.B)
}

// MultiplyRequest multiplies two integers with the same narrowing as AddRequest
type MultiplyRequest struct {
	A int64
	B int64
}

func (r MultiplyRequest) Operation() models.OperationType { return models.OperationMultiply }

func (r MultiplyRequest) inputs() map[string]any {
	return map[string]any{"a": canonicalInt(r.A), "b": canonicalInt(r.B)}
}

func (r MultiplyRequest) validate() string { return "" }

func (r MultiplyRequest) invoke(ctx context.Context, p Provider) (any, error) {
	v, err := p.Multiply(ctx, int32(r.A), int32(r.B))
	return int64(v), err
}

func (r MultiplyRequest) successMessage() string {
	return fmt.Sprintf("Successfully multiplied %d * %d", r.A, r.B)
}

// FactorialRequest computes n! for 0 <= n <= MaxFactorialInput
type FactorialRequest struct {
	N int64
}

func (r FactorialRequest) Operation() models.OperationType { return models.OperationFactorial }

func (r FactorialRequest) inputs() map[string]any {
	return map[string]any{"n": canonicalInt(r.N)}
}

func (r FactorialRequest) validate() string {
	switch {
	case r.N < 0:
		return MsgFactorialNegative
	case r.N > MaxFactorialInput:
		return MsgFactorialOverflow
	}
	return ""
}

func (r FactorialRequest) invoke(ctx context.Context, p Provider) (any, error) {
	v, err := p.Factorial(ctx, int32(r.N))
	if err != nil {
		return nil, err
	}
	if v < 0 {
		return nil, &StatusError{Function: "factorial", Status: v}
	}
	return v, nil
}

func (r FactorialRequest) successMessage() string {
	return fmt.Sprintf("Successfully calculated factorial of %d", r.N)
}

// ProcessStringRequest uppercases the ASCII letters of Text
type ProcessStringRequest struct {
	Text string
}

func (r ProcessStringRequest) Operation() models.OperationType {
	return models.OperationProcessString
}

// inputs relies on json.Marshal replacing invalid UTF-8 with U+FFFD, so a
// rejected text is still recorded
func (r ProcessStringRequest) inputs() map[string]any {
	return map[string]any{"text": r.Text}
}

func (r ProcessStringRequest) validate() string {
	if !utf8.ValidString(r.Text) {
		return MsgTextNotUTF8
	}
	return ""
}

func (r ProcessStringRequest) invoke(ctx context.Context, p Provider) (any, error) {
	v, err := p.ProcessString(ctx, r.Text)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r ProcessStringRequest) successMessage() string {
	return "Successfully processed string"
}

// SumArrayRequest sums a list of numbers. An empty list sums to 0 without
// calling the engine.
type SumArrayRequest struct {
	Numbers []float64
}

func (r SumArrayRequest) Operation() models.OperationType { return models.OperationSumArray }

func (r SumArrayRequest) inputs() map[string]any {
	numbers := make([]any, len(r.Numbers))
	for i, n := range r.Numbers {
		numbers[i] = canonicalFloat(n)
	}
	return map[string]any{"numbers": numbers}
}

func (r SumArrayRequest) validate() string {
	for _, n := range r.Numbers {
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return MsgNumbersNotFinite
		}
	}
	return ""
}

func (r SumArrayRequest) invoke(ctx context.Context, p Provider) (any, error) {
	v, err := p.SumArray(ctx, r.Numbers)
	if err != nil {
		return nil, err
	}
	// finite inputs can still overflow to ±Inf, which has no JSON form
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("sum_array: %w: %v", ErrNonFiniteResult, v)
	}
	return v, nil
}

func (r SumArrayRequest) successMessage() string {
	return fmt.Sprintf("Successfully summed %d numbers", len(r.Numbers))
}

// CanonicalInput renders the request fields as RFC 8785 canonical JSON, the
// form stored in the audit record's input_data column.
func CanonicalInput(req OperationRequest) (string, error) {
	raw, err := json.Marshal(req.inputs())
	if err != nil {
		return "", fmt.Errorf("failed to encode %s input: %w", req.Operation(), err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize %s input: %w", req.Operation(), err)
	}
	return string(canonical), nil
}

// canonicalInt keeps integers outside the double-precision safe range as
// decimal strings so canonicalization does not round them.
func canonicalInt(v int64) any {
	if v > maxSafeInteger || v < -maxSafeInteger {
		return strconv.FormatInt(v, 10)
	}
	return v
}

func canonicalFloat(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return v
}
