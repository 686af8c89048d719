package quote

import (
	"context"
	"fmt"
	"time"
)

// TransportRequest describes one outbound provider call.
type TransportRequest struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
}

// Transport sends a request and returns the raw response body. A failure is
// reported as *TransportError. Implementations must report an expired
// timeout with the "timeout" token.
//
//go:generate mockgen -package=quotemock -destination=quotemock/mock_transport.go -source=transport.go Transport
type Transport interface {
	Send(ctx context.Context, req TransportRequest, timeout time.Duration) ([]byte, error)
}

// TransportError carries the HTTP status (0 when none) and a transport
// token such as "timeout" or "parsererror".
type TransportError struct {
	StatusCode int
	Token      string
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport %s (status %d): %v", e.Token, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport %s (status %d)", e.Token, e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }
