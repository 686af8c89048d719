package quote

import (
	"errors"
	"fmt"
)

// Classification is the taxonomy label attached to every failed quote.
type Classification string

const (
	Timeout             Classification = "Timeout"
	HTTPError           Classification = "HttpError"
	ParseError          Classification = "ParseError"
	BuildError          Classification = "BuildError"
	UnsupportedProvider Classification = "UnsupportedProvider"
)

// Transient reports whether a later attempt may succeed unchanged.
func (c Classification) Transient() bool {
	return c == Timeout || c == HTTPError
}

// Error is the failure value of a quote call.
type Error struct {
	// StatusCode is 0 when no transport response was received.
	StatusCode     int            `json:"statusCode"`
	Classification Classification `json:"classification"`
	Message        string         `json:"message"`
	ProviderLabel  string         `json:"providerLabel"`
	DeepLink       string         `json:"deepLink,omitempty"`
	TransportToken string         `json:"transportToken,omitempty"`
	// Body is the start of the upstream response body, when there was one.
	Body           string         `json:"body,omitempty"`
	CorrelationID  string         `json:"correlationId,omitempty"`

	Err error `json:"-"`
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var qe *Error
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}

// Unsupported builds the error for an unknown provider identifier.
func Unsupported(label, provider string) *Error {
	return &Error{
		Classification: UnsupportedProvider,
		Message:        fmt.Sprintf("Unsupported DEX type: %s", provider),
		ProviderLabel:  label,
	}
}

// ErrFieldMissing is wrapped by parsers when an expected response field is
// absent.
var ErrFieldMissing = errors.New("field missing")

// Missing reports an absent response field path for a provider.
func Missing(what string) error {
	return fmt.Errorf("%s: %w", what, ErrFieldMissing)
}
