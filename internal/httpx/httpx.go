package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"dexquote/internal/quote"
	"dexquote/internal/status"
)

// maxResponseBody caps how much of a provider response is read.
const maxResponseBody = 4 << 20

// Client is a small wrapper around http.Client with sane defaults. It
// implements quote.Transport.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	Headers   map[string]string
}

func New(timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   100,
		MaxConnsPerHost:       100,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
	}
	return &Client{HTTP: &http.Client{Timeout: timeout, Transport: transport}, UserAgent: "dexquote/1.0"}
}

func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return c.HTTP.Do(req.WithContext(ctx))
}

// Send performs one exchange bounded by timeout. Non-2xx answers and 2xx
// answers that are not JSON come back as *quote.TransportError.
func (c *Client) Send(ctx context.Context, tr quote.TransportRequest, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	method := tr.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(tr.Body) > 0 {
		body = bytes.NewReader(tr.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, tr.URL, body)
	if err != nil {
		return nil, &quote.TransportError{Token: status.TokenError, Err: err}
	}
	for k, v := range tr.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, &quote.TransportError{Token: tokenFor(ctx, err), Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &quote.TransportError{StatusCode: resp.StatusCode, Token: tokenFor(ctx, err), Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &quote.TransportError{StatusCode: resp.StatusCode, Token: status.TokenError, Body: snippet(b)}
	}
	if !json.Valid(b) {
		return nil, &quote.TransportError{StatusCode: resp.StatusCode, Token: status.TokenParserError, Body: snippet(b)}
	}
	return b, nil
}

func tokenFor(ctx context.Context, err error) string {
	var netErr net.Error
	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return status.TokenTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return status.TokenTimeout
	case errors.Is(err, context.Canceled):
		return status.TokenAbort
	case errors.As(err, &opErr), errors.As(err, &dnsErr):
		// no response: refused, reset or unresolvable host
		return status.TokenNetwork
	}
	return status.TokenError
}

func snippet(b []byte) string {
	const limit = 512
	if len(b) > limit {
		return string(b[:limit])
	}
	return string(b)
}
