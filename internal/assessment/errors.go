package assessment

import (
	"errors"
	"fmt"

	"github.com/riskassess/backend/internal/llm"
	"github.com/riskassess/backend/internal/parser"
)

type Kind string

const (
	KindConfigMissing    Kind = "CONFIG_MISSING"
	KindEmptyResponse    Kind = "EMPTY_RESPONSE"
	KindMalformedPayload Kind = "MALFORMED_PAYLOAD"
	KindUpstream         Kind = "UPSTREAM"
	KindUnknown          Kind = "UNKNOWN"
)

var messages = map[Kind]string{
	KindConfigMissing:    "API key is missing. Please configure your environment.",
	KindEmptyResponse:    "The AI model did not return a valid response. Please try again.",
	KindMalformedPayload: "Data parsing error. The model response was malformed. Please try again.",
	KindUpstream:         "The inference service is unavailable. Please try again later.",
	KindUnknown:          "Failed to analyze data.",
}

var hints = map[Kind]string{
	KindConfigMissing:    "Set RISK_ASSESS_LLM_APIKEY (or llm.apiKey in config.yaml) and restart the service.",
	KindEmptyResponse:    "Submit the same attributes again.",
	KindMalformedPayload: "Submit the same attributes again.",
	KindUpstream:         "Wait a moment before submitting again.",
}

// Error is the single classified failure a submission surfaces. Raw holds
// the unparseable inference output for diagnostics and is never serialized.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"error"`
	Hint    string `json:"hint,omitempty"`
	Raw     string `json:"-"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error) *Error {
	return &Error{
		Kind:    kind,
		Message: messages[kind],
		Hint:    hints[kind],
		Err:     err,
	}
}

// Classify maps err to exactly one Kind. It returns nil for a nil error.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	switch {
	case errors.Is(err, llm.ErrMissingCredential), errors.Is(err, llm.ErrRejectedCredential):
		return newError(KindConfigMissing, err)
	case errors.Is(err, llm.ErrEmptyResponse):
		return newError(KindEmptyResponse, err)
	case errors.Is(err, parser.ErrMalformedPayload):
		e := newError(KindMalformedPayload, err)
		var malformed *parser.MalformedError
		if errors.As(err, &malformed) {
			e.Raw = malformed.Raw
		}
		return e
	case errors.Is(err, llm.ErrUpstream):
		return newError(KindUpstream, err)
	default:
		return newError(KindUnknown, err)
	}
}

// MessageFor returns the user-facing text for kind.
func MessageFor(kind Kind) string {
	if m, ok := messages[kind]; ok {
		return m
	}
	return messages[KindUnknown]
}
