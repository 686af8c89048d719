// Package odos quotes through the Odos smart order router.
package odos

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"dexquote/internal/provider"
	"dexquote/internal/quote"
)

const (
	Label           = "ODOS"
	DefaultURL      = "https://api.odos.xyz/sor/quote/v3"
	defaultSlippage = 0.3
)

// ErrWalletRequired is returned when no sender address is known. Odos
// quotes are tied to the sender.
var ErrWalletRequired = errors.New("odos requires a wallet address")

type Strategy struct {
	URL string
}

func New() *Strategy { return &Strategy{URL: DefaultURL} }

func (s *Strategy) Label() string { return Label }

type inputToken struct {
	Amount       string `json:"amount"`
	TokenAddress string `json:"tokenAddress"`
}

type outputToken struct {
	Proportion   int    `json:"proportion"`
	TokenAddress string `json:"tokenAddress"`
}

type quoteRequest struct {
	ChainID              int           `json:"chainId"`
	Compact              bool          `json:"compact"`
	DisableRFQs          bool          `json:"disableRFQs"`
	UserAddr             string        `json:"userAddr"`
	InputTokens          []inputToken  `json:"inputTokens"`
	OutputTokens         []outputToken `json:"outputTokens"`
	SlippageLimitPercent float64       `json:"slippageLimitPercent"`
}

func (s *Strategy) BuildRequest(req quote.Request, aux quote.Aux) (quote.TransportRequest, error) {
	if strings.TrimSpace(aux.Wallet) == "" {
		return quote.TransportRequest{}, ErrWalletRequired
	}
	slippage := req.Slippage
	if slippage <= 0 {
		slippage = defaultSlippage
	}
	return provider.JSONRequest(s.URL, quoteRequest{
		ChainID:              aux.ChainID,
		Compact:              true,
		DisableRFQs:          true,
		UserAddr:             aux.Wallet,
		InputTokens:          []inputToken{{Amount: aux.AmountIn.String(), TokenAddress: strings.ToLower(req.Source.Address)}},
		OutputTokens:         []outputToken{{Proportion: 1, TokenAddress: strings.ToLower(req.Dest.Address)}},
		SlippageLimitPercent: slippage,
	})
}

type quoteResponse struct {
	OutAmounts       json.RawMessage `json:"outAmounts"`
	GasEstimateValue json.RawMessage `json:"gasEstimateValue"`
}

func (s *Strategy) ParseResponse(body []byte, req quote.Request, aux quote.Aux) (quote.Result, error) {
	var resp quoteResponse
	if err := provider.Decode("Odos", body, &resp); err != nil {
		return quote.Result{}, err
	}
	raw, ok := firstAmount(resp.OutAmounts)
	if !ok {
		return quote.Result{}, quote.Missing("invalid Odos response structure: outAmounts")
	}
	return quote.Result{
		ProviderLabel:  Label,
		AmountOut:      quote.FromMinorUnits(raw, req.Dest.Decimals),
		FeeEstimateUSD: quote.FeeOr(resp.GasEstimateValue, aux.FallbackFee),
	}, nil
}

// firstAmount accepts either a scalar or the single-output array form.
func firstAmount(raw json.RawMessage) (decimal.Decimal, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil || len(list) == 0 {
			return decimal.Zero, false
		}
		trimmed = list[0]
	}
	return quote.ParseDecimal(trimmed)
}

func (s *Strategy) DeepLink(quote.Request) string {
	return "https://app.odos.xyz/"
}
