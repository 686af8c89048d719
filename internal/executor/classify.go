package executor

import (
	"context"
	"errors"
	"strings"
	"time"

	"dexquote/internal/quote"
	"dexquote/internal/status"
)

// ApplyProxy prepends prefix to rawURL unless prefix is empty or rawURL
// already carries it.
func ApplyProxy(rawURL, prefix string) string {
	if prefix == "" || strings.HasPrefix(rawURL, prefix) {
		return rawURL
	}
	return prefix + rawURL
}

// SendWithin calls t.Send and returns no later than timeout, even when the
// transport ignores its context.
func SendWithin(ctx context.Context, t quote.Transport, req quote.TransportRequest, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		body []byte
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		body, err := t.Send(ctx, req, timeout)
		done <- outcome{body, err}
	}()

	select {
	case o := <-done:
		return o.body, o.err
	case <-ctx.Done():
		return nil, contextFailure(ctx)
	}
}

func contextFailure(ctx context.Context) error {
	token := status.TokenTimeout
	if errors.Is(ctx.Err(), context.Canceled) {
		token = status.TokenAbort
	}
	return &quote.TransportError{Token: token, Err: ctx.Err()}
}

// TransportFailure turns a transport error into a quote error. Status and
// token are kept verbatim.
func TransportFailure(label string, err error) *quote.Error {
	code, token, body := 0, status.TokenError, ""
	var te *quote.TransportError
	switch {
	case errors.As(err, &te):
		code, token, body = te.StatusCode, te.Token, te.Body
	case errors.Is(err, context.DeadlineExceeded):
		token = status.TokenTimeout
	case errors.Is(err, context.Canceled):
		token = status.TokenAbort
	}

	class := quote.HTTPError
	switch {
	case strings.EqualFold(token, status.TokenTimeout):
		class = quote.Timeout
	case code == 200 && status.IsParserError(token):
		class = quote.ParseError
	}

	prefix := label + ":"
	if l := status.Label(code); l != "" {
		prefix += " " + l
	}
	qe := &quote.Error{
		StatusCode:     code,
		Classification: class,
		Message:        prefix + " " + status.Classify(code, token),
		ProviderLabel:  label,
		TransportToken: token,
		Body:           body,
		Err:            err,
	}
	return qe
}

// BuildFailure wraps a builder or validation error.
func BuildFailure(label string, err error) *quote.Error {
	return &quote.Error{
		Classification: quote.BuildError,
		Message:        "Request Build Error: " + err.Error(),
		ProviderLabel:  label,
		Err:            err,
	}
}

// ParseFailure wraps a normalizer error. The transport answered 200.
func ParseFailure(label string, err error) *quote.Error {
	return &quote.Error{
		StatusCode:     200,
		Classification: quote.ParseError,
		Message:        "Parse Error: " + err.Error(),
		ProviderLabel:  label,
		Err:            err,
	}
}
