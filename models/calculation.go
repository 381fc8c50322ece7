package models

import (
	"strconv"
	"strings"
	"time"
)

// OperationType identifies which engine operation produced a calculation record
type OperationType string

const (
	OperationAdd           OperationType = "add"
	OperationMultiply      OperationType = "multiply"
	OperationFactorial     OperationType = "factorial"
	OperationProcessString OperationType = "process-string"
	OperationSumArray      OperationType = "sum-array"
)

// OperationTypes lists every operation the engine gateway accepts
var OperationTypes = []OperationType{
	OperationAdd,
	OperationMultiply,
	OperationFactorial,
	OperationProcessString,
	OperationSumArray,
}

// Valid reports whether t is a known operation type
func (t OperationType) Valid() bool {
	for _, known := range OperationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Calculation is one append-only audit record of an engine gateway call.
// ID and CreatedAt are assigned by the store on insert.
type Calculation struct {
	ID            int64         `json:"id" db:"id"`
	OperationType OperationType `json:"operation_type" db:"operation_type"`
	InputData     string        `json:"input_data" db:"input_data"` // canonical JSON of the request fields
	Result        *string       `json:"result" db:"result"`
	Success       bool          `json:"success" db:"success"`
	Message       string        `json:"message" db:"message"`
	RequestID     string        `json:"request_id,omitempty" db:"request_id"`
	DurationMs    int64         `json:"duration_ms" db:"duration_ms"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Calculation model
func (Calculation) TableName() string {
	return "engine_calculations"
}

// NewCalculation creates an unsaved calculation record for the given operation
func NewCalculation(op OperationType, inputData string) *Calculation {
	return &Calculation{
		OperationType: op,
		InputData:     inputData,
	}
}

// WithResult marks the calculation successful and stores the textual result
func (c *Calculation) WithResult(value any, message string) *Calculation {
	text := FormatResult(value)
	c.Result = &text
	c.Success = true
	c.Message = message
	return c
}

// WithFailure marks the calculation failed with the given message
func (c *Calculation) WithFailure(message string) *Calculation {
	c.Result = nil
	c.Success = false
	c.Message = message
	return c
}

// WithRequest sets request metadata
func (c *Calculation) WithRequest(requestID string, duration time.Duration) *Calculation {
	c.RequestID = requestID
	c.DurationMs = duration.Milliseconds()
	return c
}

// FormatResult renders an engine result value the way it is stored in the result column
func FormatResult(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		// Integral sums keep a trailing ".0" so "7.0" reads back as a float.
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.ContainsAny(s, ".IN") {
			s += ".0"
		}
		return s
	default:
		return ""
	}
}

