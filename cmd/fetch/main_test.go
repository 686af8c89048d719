package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dexquote/internal/app"
	"dexquote/internal/engine"
	"dexquote/internal/quote"
)

type transportFunc func(ctx context.Context, req quote.TransportRequest, timeout time.Duration) ([]byte, error)

func (f transportFunc) Send(ctx context.Context, req quote.TransportRequest, timeout time.Duration) ([]byte, error) {
	return f(ctx, req, timeout)
}

func fakeUpstream(_ context.Context, req quote.TransportRequest, _ time.Duration) ([]byte, error) {
	switch {
	case strings.Contains(req.URL, "kyberswap.com"):
		return []byte(`{"data":{"routeSummary":{"amountOut":"2500000000","gasUsd":"3.2"}}}`), nil
	case strings.Contains(req.URL, "railway.app"):
		return []byte(`{"amountOutWei":"2450000000"}`), nil
	}
	return nil, &quote.TransportError{StatusCode: 500, Token: "error"}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := newApp(&out, app.WithTransport(transportFunc(fakeUpstream)))
	base := []string{"fetch", "--config", filepath.Join(t.TempDir(), "none.yaml")}
	err := a.Run(append(base, args...))
	return out.String(), err
}

var pairArgs = []string{
	"--chain-id", "1", "--chain", "ethereum",
	"--from", "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE", "--from-decimals", "18",
	"--to", "0xdAC17F958D2ee523a2206206994597C13D831ec7", "--to-decimals", "6",
	"--amount", "1",
}

func TestProvidersCommand(t *testing.T) {
	out, err := run(t, "providers")
	require.NoError(t, err)

	var got []engine.ProviderInfo
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.NotEmpty(t, got)
	require.Equal(t, "kyber", got[0].Name)
}

func TestQuoteCommandSingle(t *testing.T) {
	out, err := run(t, append([]string{"quote", "--provider", "kyber"}, pairArgs...)...)
	require.NoError(t, err)

	var res quote.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, "KYBER", res.ProviderLabel)
	require.Equal(t, "2500", res.AmountOut.String())
	require.NotEmpty(t, res.CorrelationID)
}

func TestQuoteCommandFanOut(t *testing.T) {
	out, err := run(t, append([]string{"quote", "--provider", "kyber,magpie,odos"}, pairArgs...)...)
	require.NoError(t, err)

	var rep fanOutReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Len(t, rep.Outcomes, 3)
	require.Len(t, rep.Ranking, 2)
	require.Equal(t, "KYBER", rep.Ranking[0].Provider)
	require.Equal(t, "MAGPIE", rep.Ranking[1].Provider)
	require.NotNil(t, rep.Spread)
	require.Equal(t, "2", rep.Spread.Percent.String())
}

func TestQuoteCommandFailurePrintsError(t *testing.T) {
	out, err := run(t, append([]string{"quote", "--provider", "uniswap"}, pairArgs...)...)
	require.Error(t, err)

	var qe quote.Error
	require.NoError(t, json.Unmarshal([]byte(out), &qe))
	require.Equal(t, quote.UnsupportedProvider, qe.Classification)
}

func TestQuoteCommandRejectsBadAmount(t *testing.T) {
	args := append([]string{"quote", "--provider", "kyber"}, pairArgs...)
	args[len(args)-1] = "lots"

	_, err := run(t, args...)
	require.ErrorContains(t, err, "invalid --amount")
}

func TestSplitProviders(t *testing.T) {
	require.Equal(t, []string{"kyber", "odos", "0x"}, splitProviders([]string{"kyber, odos", "", "0x"}))
}
