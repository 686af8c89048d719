package app_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"dexquote/internal/app"
	"dexquote/internal/config"
	"dexquote/internal/quote"
	"dexquote/internal/quote/quotemock"
)

func TestNewLogger(t *testing.T) {
	t.Parallel()

	l, err := app.NewLogger(config.Log{Level: "debug", Format: "console"})
	require.NoError(t, err)
	require.NotNil(t, l)

	_, err = app.NewLogger(config.Log{Level: "loud"})
	require.Error(t, err)
}

func TestBuildWiresDefaults(t *testing.T) {
	t.Parallel()

	// Arrange: default config, proxy on, transport answering 0x through the proxy.
	cfg := config.Default()
	cfg.Providers = config.DefaultProviders()
	cfg.Proxy.Prefix = "https://proxy.example/"
	ctrl := gomock.NewController(t)
	transport := quotemock.NewMockTransport(ctrl)
	transport.EXPECT().
		Send(gomock.Any(), gomock.Any(), 4*time.Second).
		DoAndReturn(func(_ context.Context, req quote.TransportRequest, _ time.Duration) ([]byte, error) {
			require.True(t, strings.HasPrefix(req.URL, "https://proxy.example/https://"), req.URL)
			return []byte(`{"buyAmount":"2500000000"}`), nil
		}).
		Times(1)

	a, err := app.Build(cfg, nil, app.WithTransport(transport))
	require.NoError(t, err)

	// Act: quote on 0x.
	res, err := a.Router.Quote(t.Context(), quote.Request{
		Source:   quote.Token{Address: "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE", Decimals: 18},
		Dest:     quote.Token{Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Decimals: 6},
		Amount:   decimal.NewFromInt(1),
		Chain:    quote.Chain{ID: 1, Name: "ethereum"},
		Provider: "0x",
	}, a.Settings)

	// Assert: direct result with the configured fee fallback.
	require.NoError(t, err)
	require.Equal(t, "0X", res.ProviderLabel)
	require.True(t, decimal.NewFromInt(2500).Equal(res.AmountOut), res.AmountOut.String())
	require.True(t, decimal.NewFromFloat(3.0).Equal(res.FeeEstimateUSD))

	names := make([]string, 0)
	for _, p := range a.Router.Providers() {
		names = append(names, p.Name)
	}
	require.Contains(t, names, "kyberswap")
	require.Contains(t, names, "bebop")
}

func TestBuildRejectsUnknownDedupMode(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Providers = config.DefaultProviders()
	cfg.Dedup.Mode = "sometimes"

	_, err := app.Build(cfg, nil, app.WithTransport(quotemock.NewMockTransport(gomock.NewController(t))))
	require.Error(t, err)
}

func TestBuildRejectsUnknownStrategy(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Providers = []config.Provider{{Name: "uni", Strategy: "uniswap"}}

	_, err := app.Build(cfg, nil, app.WithTransport(quotemock.NewMockTransport(gomock.NewController(t))))
	require.Error(t, err)
}
