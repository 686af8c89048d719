// Package zerox quotes 0x liquidity through the Matcha price endpoints.
// Solana pairs use a separate quote endpoint keyed by public key.
package zerox

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"dexquote/internal/provider"
	"dexquote/internal/quote"
)

const (
	Label          = "0X"
	DefaultBaseURL = "https://matcha.xyz"
	// defaultSolanaPublicKey is a read-only account used when no Solana
	// wallet is configured.
	defaultSolanaPublicKey = "Eo6CpSc1ViboPva7NZ1YuxUnDCgqnFDXzcDMDAF6YJ1L"
	defaultSlippageBps     = 50
)

type Strategy struct {
	BaseURL string
}

func New() *Strategy { return &Strategy{BaseURL: DefaultBaseURL} }

func (s *Strategy) Label() string { return Label }

// BuildRequest keeps token addresses in their original case.
func (s *Strategy) BuildRequest(req quote.Request, aux quote.Aux) (quote.TransportRequest, error) {
	q := url.Values{}
	if req.Chain.IsSolana() {
		bps := defaultSlippageBps
		if req.Slippage > 0 {
			bps = int(math.Round(req.Slippage * 100))
		}
		key := aux.Wallet
		if key == "" || strings.HasPrefix(key, "0x") {
			key = defaultSolanaPublicKey
		}
		q.Set("sellTokenAddress", req.Source.Address)
		q.Set("buyTokenAddress", req.Dest.Address)
		q.Set("sellAmount", aux.AmountIn.String())
		q.Set("dynamicSlippage", "true")
		q.Set("slippageBps", strconv.Itoa(bps))
		q.Set("userPublicKey", key)
		return quote.TransportRequest{
			URL:    s.BaseURL + "/api/swap/quote/solana?" + q.Encode(),
			Method: "GET",
		}, nil
	}
	q.Set("chainId", strconv.Itoa(aux.ChainID))
	q.Set("buyToken", req.Dest.Address)
	q.Set("sellToken", req.Source.Address)
	q.Set("sellAmount", aux.AmountIn.String())
	return quote.TransportRequest{
		URL:    s.BaseURL + "/api/swap/price?" + q.Encode(),
		Method: "GET",
	}, nil
}

type priceResponse struct {
	BuyAmount json.RawMessage `json:"buyAmount"`
}

// ParseResponse always uses the static chain fee; the price endpoint does
// not report gas in USD.
func (s *Strategy) ParseResponse(body []byte, req quote.Request, aux quote.Aux) (quote.Result, error) {
	var resp priceResponse
	if err := provider.Decode("0x", body, &resp); err != nil {
		return quote.Result{}, err
	}
	raw, ok := quote.ParseDecimal(resp.BuyAmount)
	if !ok {
		return quote.Result{}, quote.Missing("invalid 0x response structure: buyAmount")
	}
	return quote.Result{
		ProviderLabel:  Label,
		AmountOut:      quote.FromMinorUnits(raw, req.Dest.Decimals),
		FeeEstimateUSD: aux.FallbackFee,
	}, nil
}

func (s *Strategy) DeepLink(req quote.Request) string {
	chain := strings.ToLower(req.Chain.Name)
	if chain == "" {
		chain = strconv.Itoa(req.Chain.ID)
	}
	return fmt.Sprintf("https://matcha.xyz/tokens/%s/%s?buyChain=%d&buyAddress=%s",
		chain, req.Source.Address, req.Chain.ID, req.Dest.Address)
}
