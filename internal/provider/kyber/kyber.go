// Package kyber quotes through the KyberSwap route aggregator.
package kyber

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"dexquote/internal/provider"
	"dexquote/internal/quote"
)

const (
	Label          = "KYBER"
	DefaultBaseURL = "https://aggregator-api.kyberswap.com"
)

// Strategy is the KyberSwap route strategy.
type Strategy struct {
	BaseURL string
}

func New() *Strategy { return &Strategy{BaseURL: DefaultBaseURL} }

func (s *Strategy) Label() string { return Label }

func (s *Strategy) BuildRequest(req quote.Request, aux quote.Aux) (quote.TransportRequest, error) {
	chain := strings.ToLower(strings.TrimSpace(req.Chain.Name))
	if chain == "" {
		return quote.TransportRequest{}, errors.New("kyber requires a chain name")
	}
	q := url.Values{}
	q.Set("tokenIn", strings.ToLower(req.Source.Address))
	q.Set("tokenOut", strings.ToLower(req.Dest.Address))
	q.Set("amountIn", aux.AmountIn.String())
	q.Set("gasInclude", "true")
	return quote.TransportRequest{
		URL:    fmt.Sprintf("%s/%s/api/v1/routes?%s", s.BaseURL, chain, q.Encode()),
		Method: "GET",
	}, nil
}

type routesResponse struct {
	Data *struct {
		RouteSummary *struct {
			AmountOut json.RawMessage `json:"amountOut"`
			GasUSD    json.RawMessage `json:"gasUsd"`
		} `json:"routeSummary"`
	} `json:"data"`
}

func (s *Strategy) ParseResponse(body []byte, req quote.Request, aux quote.Aux) (quote.Result, error) {
	var resp routesResponse
	if err := provider.Decode("KyberSwap", body, &resp); err != nil {
		return quote.Result{}, err
	}
	if resp.Data == nil || resp.Data.RouteSummary == nil {
		return quote.Result{}, quote.Missing("invalid KyberSwap response structure: data.routeSummary")
	}
	raw, ok := quote.ParseDecimal(resp.Data.RouteSummary.AmountOut)
	if !ok {
		return quote.Result{}, quote.Missing("invalid KyberSwap response structure: routeSummary.amountOut")
	}
	return quote.Result{
		ProviderLabel:  Label,
		AmountOut:      quote.FromMinorUnits(raw, req.Dest.Decimals),
		FeeEstimateUSD: quote.FeeOr(resp.Data.RouteSummary.GasUSD, aux.FallbackFee),
	}, nil
}

// DeepLink points at the KyberSwap swap page for the pair.
func (s *Strategy) DeepLink(req quote.Request) string {
	return fmt.Sprintf("https://kyberswap.com/swap/%s/%s-to-%s",
		strings.ToLower(req.Chain.Name), req.Source.Address, req.Dest.Address)
}
