// Package okx quotes through the OKX DEX aggregator. Every request is signed
// with a credential from the configured pool.
package okx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"dexquote/internal/provider"
	"dexquote/internal/quote"
)

const (
	Label          = "OKX"
	DefaultBaseURL = "https://web3.okx.com"
	QuotePath      = "/api/v5/dex/aggregator/quote"
)

// Header names of the OKX signing scheme.
const (
	HeaderKey        = "OK-ACCESS-KEY"
	HeaderSign       = "OK-ACCESS-SIGN"
	HeaderPassphrase = "OK-ACCESS-PASSPHRASE"
	HeaderTimestamp  = "OK-ACCESS-TIMESTAMP"
)

var ErrNoSigner = errors.New("okx requires API credentials")

type Strategy struct {
	BaseURL string
}

func New() *Strategy { return &Strategy{BaseURL: DefaultBaseURL} }

func (s *Strategy) Label() string { return Label }

// BuildRequest signs the exact query string it sends. Addresses keep their
// original case.
func (s *Strategy) BuildRequest(req quote.Request, aux quote.Aux) (quote.TransportRequest, error) {
	if aux.Signer == nil {
		return quote.TransportRequest{}, ErrNoSigner
	}
	q := url.Values{}
	q.Set("amount", aux.AmountIn.String())
	q.Set("chainIndex", strconv.Itoa(aux.ChainID))
	q.Set("fromTokenAddress", req.Source.Address)
	q.Set("toTokenAddress", req.Dest.Address)
	query := q.Encode()

	sig, err := aux.Signer.Sign("GET", QuotePath, query)
	if err != nil {
		return quote.TransportRequest{}, fmt.Errorf("okx sign: %w", err)
	}
	return quote.TransportRequest{
		URL:    s.BaseURL + QuotePath + "?" + query,
		Method: "GET",
		Headers: map[string]string{
			HeaderKey:        sig.APIKey,
			HeaderSign:       sig.Signature,
			HeaderPassphrase: sig.Passphrase,
			HeaderTimestamp:  sig.Timestamp,
			"Content-Type":   "application/json",
		},
	}, nil
}

type quoteResponse struct {
	Msg  string `json:"msg"`
	Data []struct {
		ToTokenAmount json.RawMessage `json:"toTokenAmount"`
	} `json:"data"`
}

func (s *Strategy) ParseResponse(body []byte, req quote.Request, aux quote.Aux) (quote.Result, error) {
	var resp quoteResponse
	if err := provider.Decode("OKX", body, &resp); err != nil {
		return quote.Result{}, err
	}
	if len(resp.Data) == 0 {
		if resp.Msg != "" {
			return quote.Result{}, quote.Missing("invalid OKX response structure: " + resp.Msg)
		}
		return quote.Result{}, quote.Missing("invalid OKX response structure: data[0]")
	}
	raw, ok := quote.ParseDecimal(resp.Data[0].ToTokenAmount)
	if !ok {
		return quote.Result{}, quote.Missing("invalid OKX response structure: data[0].toTokenAmount")
	}
	return quote.Result{
		ProviderLabel:  Label,
		AmountOut:      quote.FromMinorUnits(raw, req.Dest.Decimals),
		FeeEstimateUSD: aux.FallbackFee,
	}, nil
}

func (s *Strategy) DeepLink(req quote.Request) string {
	return fmt.Sprintf("https://web3.okx.com/dex-swap?chain=%s&token=%s&toToken=%s",
		strings.ToLower(req.Chain.Name), req.Source.Address, req.Dest.Address)
}
