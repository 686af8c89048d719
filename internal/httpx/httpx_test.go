package httpx_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dexquote/internal/httpx"
	"dexquote/internal/quote"
	"dexquote/internal/status"
)

func TestSendSuccess(t *testing.T) {
	t.Parallel()

	// Arrange: a server echoing what it received.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "v", r.Header.Get("X-Test"))
		require.Equal(t, "dexquote/1.0", r.Header.Get("User-Agent"))
		require.Equal(t, `{"a":1}`, string(b))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	// Act: send a POST with a header and body.
	body, err := httpx.New(5*time.Second).Send(t.Context(), quote.TransportRequest{
		URL:     srv.URL,
		Method:  http.MethodPost,
		Headers: map[string]string{"X-Test": "v"},
		Body:    []byte(`{"a":1}`),
	}, time.Second)

	// Assert: the raw body comes back.
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(body))
}

func TestSendHTTPStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"rate limited"}`, http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	_, err := httpx.New(5*time.Second).Send(t.Context(), quote.TransportRequest{URL: srv.URL}, time.Second)

	var te *quote.TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, http.StatusTooManyRequests, te.StatusCode)
	require.Equal(t, status.TokenError, te.Token)
	require.Contains(t, te.Body, "rate limited")
}

func TestSendInvalidJSONAt200(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	t.Cleanup(srv.Close)

	_, err := httpx.New(5*time.Second).Send(t.Context(), quote.TransportRequest{URL: srv.URL}, time.Second)

	var te *quote.TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, http.StatusOK, te.StatusCode)
	require.Equal(t, status.TokenParserError, te.Token)
}

func TestSendTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	start := time.Now()
	_, err := httpx.New(5*time.Second).Send(t.Context(), quote.TransportRequest{URL: srv.URL}, 50*time.Millisecond)

	var te *quote.TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, status.TokenTimeout, te.Token)
	require.Zero(t, te.StatusCode)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestSendCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(t.Context())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := httpx.New(5*time.Second).Send(ctx, quote.TransportRequest{URL: srv.URL}, 5*time.Second)

	var te *quote.TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, status.TokenAbort, te.Token)
}

func TestSendConnectionRefused(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := httpx.New(time.Second).Send(t.Context(), quote.TransportRequest{URL: url}, time.Second)

	var te *quote.TransportError
	require.ErrorAs(t, err, &te)
	require.Zero(t, te.StatusCode)
	require.Equal(t, status.TokenNetwork, te.Token)
	require.Equal(t, "Error: network error", status.Classify(te.StatusCode, te.Token))
}
