package engine

// OutcomeKind classifies how an engine call ended
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRejected
	OutcomeProviderFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRejected:
		return "rejected"
	case OutcomeProviderFailure:
		return "provider_failure"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of one gateway call. Value is set only
// for OutcomeSuccess and is an int64, float64 or string. Message is the
// client-facing text; Err holds the underlying provider error, if any.
type Outcome struct {
	Kind    OutcomeKind
	Value   any
	Message string
	Err     error
}

// Succeeded reports whether the outcome is OutcomeSuccess
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}

func success(value any, message string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Value: value, Message: message}
}

func rejected(reason string) Outcome {
	return Outcome{Kind: OutcomeRejected, Message: reason}
}

func providerFailure(err error) Outcome {
	return Outcome{
		Kind:    OutcomeProviderFailure,
		Message: "Engine error: " + err.Error(),
		Err:     err,
	}
}
