// Package oneinch quotes 1inch liquidity through two meta-aggregators: the
// DZap quote API for TokenToPair and LiFi advanced routes otherwise.
package oneinch

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"dexquote/internal/provider"
	"dexquote/internal/quote"
)

const (
	Label            = "1INCH"
	DefaultDZapURL   = "https://api.dzap.io/v1/quotes"
	DefaultRoutesURL = "https://api-v1.marbleland.io/api/v1/jumper/api/p/lifi/advanced/routes"
	dzapIntegrator   = "dzap"
	dzapSource       = "oneInchViaLifi"
	routesIntegrator = "swap.marbleland.io"
	defaultSlippage  = 0.3
	zeroEVMAddress   = "0x0000000000000000000000000000000000000000"
)

// Strategy is the 1inch meta-aggregator strategy.
type Strategy struct {
	DZapURL   string
	RoutesURL string
}

func New() *Strategy {
	return &Strategy{DZapURL: DefaultDZapURL, RoutesURL: DefaultRoutesURL}
}

func (s *Strategy) Label() string { return Label }

type dzapItem struct {
	Amount       string  `json:"amount"`
	SrcToken     string  `json:"srcToken"`
	SrcDecimals  int     `json:"srcDecimals"`
	DestToken    string  `json:"destToken"`
	DestDecimals int     `json:"destDecimals"`
	Slippage     float64 `json:"slippage"`
	ToChain      int     `json:"toChain"`
}

type dzapRequest struct {
	Account        string     `json:"account"`
	FromChain      int        `json:"fromChain"`
	IntegratorID   string     `json:"integratorId"`
	AllowedSources []string   `json:"allowedSources"`
	Data           []dzapItem `json:"data"`
}

type routesRequest struct {
	FromAmount       string `json:"fromAmount"`
	FromChainID      int    `json:"fromChainId"`
	FromTokenAddress string `json:"fromTokenAddress"`
	ToChainID        int    `json:"toChainId"`
	ToTokenAddress   string `json:"toTokenAddress"`
	Options          struct {
		Integrator string `json:"integrator"`
		Order      string `json:"order"`
		Exchanges  struct {
			Allow []string `json:"allow"`
		} `json:"exchanges"`
	} `json:"options"`
}

func (s *Strategy) BuildRequest(req quote.Request, aux quote.Aux) (quote.TransportRequest, error) {
	src := strings.ToLower(req.Source.Address)
	dst := strings.ToLower(req.Dest.Address)
	if req.Action.IsTokenToPair() {
		account := aux.Wallet
		if account == "" {
			account = zeroEVMAddress
		}
		slippage := req.Slippage
		if slippage <= 0 {
			slippage = defaultSlippage
		}
		return provider.JSONRequest(s.DZapURL, dzapRequest{
			Account:        account,
			FromChain:      aux.ChainID,
			IntegratorID:   dzapIntegrator,
			AllowedSources: []string{dzapSource},
			Data: []dzapItem{{
				Amount:       aux.AmountIn.String(),
				SrcToken:     src,
				SrcDecimals:  req.Source.Decimals,
				DestToken:    dst,
				DestDecimals: req.Dest.Decimals,
				Slippage:     slippage,
				ToChain:      aux.ChainID,
			}},
		})
	}

	body := routesRequest{
		FromAmount:       aux.AmountIn.String(),
		FromChainID:      aux.ChainID,
		FromTokenAddress: src,
		ToChainID:        aux.ChainID,
		ToTokenAddress:   dst,
	}
	body.Options.Integrator = routesIntegrator
	body.Options.Order = "CHEAPEST"
	body.Options.Exchanges.Allow = []string{"1inch"}
	return provider.JSONRequest(s.RoutesURL, body)
}

type dzapQuote struct {
	QuoteRates map[string]*struct {
		ToAmount   json.RawMessage `json:"toAmount"`
		DestAmount json.RawMessage `json:"destAmount"`
		Fee        struct {
			GasFee []struct {
				AmountUSD json.RawMessage `json:"amountUSD"`
			} `json:"gasFee"`
		} `json:"fee"`
	} `json:"quoteRates"`
}

type routesResponse struct {
	Routes []struct {
		ToAmount   json.RawMessage `json:"toAmount"`
		GasCostUSD json.RawMessage `json:"gasCostUSD"`
	} `json:"routes"`
}

func (s *Strategy) ParseResponse(body []byte, req quote.Request, aux quote.Aux) (quote.Result, error) {
	if req.Action.IsTokenToPair() {
		return s.parseDZap(body, req, aux)
	}
	var resp routesResponse
	if err := provider.Decode("LiFi", body, &resp); err != nil {
		return quote.Result{}, err
	}
	if len(resp.Routes) == 0 {
		return quote.Result{}, quote.Missing("1inch route not found in LiFi response")
	}
	route := resp.Routes[0]
	raw, ok := quote.ParseDecimal(route.ToAmount)
	if !ok {
		return quote.Result{}, quote.Missing("1inch route has no toAmount")
	}
	return quote.Result{
		ProviderLabel:  Label,
		AmountOut:      quote.FromMinorUnits(raw, req.Dest.Decimals),
		FeeEstimateUSD: quote.FeeOr(route.GasCostUSD, aux.FallbackFee),
	}, nil
}

// parseDZap reads the first response key, in sorted order, that carries a
// 1inch rate. The key itself is generated by DZap and carries no meaning.
func (s *Strategy) parseDZap(body []byte, req quote.Request, aux quote.Aux) (quote.Result, error) {
	var entries map[string]json.RawMessage
	if err := provider.Decode("DZap", body, &entries); err != nil {
		return quote.Result{}, err
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var q dzapQuote
		if err := json.Unmarshal(entries[k], &q); err != nil {
			continue
		}
		rate := q.QuoteRates[dzapSource]
		if rate == nil {
			continue
		}
		raw, ok := quote.ParseDecimal(rate.ToAmount)
		if !ok {
			raw, ok = quote.ParseDecimal(rate.DestAmount)
		}
		if !ok {
			return quote.Result{}, quote.Missing("1inch quote in DZap response has no toAmount or destAmount")
		}
		var fee json.RawMessage
		if len(rate.Fee.GasFee) > 0 {
			fee = rate.Fee.GasFee[0].AmountUSD
		}
		return quote.Result{
			ProviderLabel:  Label,
			AmountOut:      quote.FromMinorUnits(raw, req.Dest.Decimals),
			FeeEstimateUSD: quote.FeeOr(fee, aux.FallbackFee),
		}, nil
	}
	return quote.Result{}, quote.Missing("1inch quote not found in DZap response")
}

// DeepLink points at the 1inch swap page for the pair.
func (s *Strategy) DeepLink(req quote.Request) string {
	return fmt.Sprintf("https://app.1inch.io/#/%d/simple/swap/%s/%s", req.Chain.ID, req.Source.Address, req.Dest.Address)
}
