// Package quote holds the canonical request, result and error shapes shared
// by every provider, plus the transport and signer contracts the engine
// depends on.
package quote

import (
	"errors"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Token identifies one side of a swap.
type Token struct {
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
}

// Chain identifies the network a swap is quoted on.
type Chain struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// IsSolana reports whether the chain is the Solana family.
func (c Chain) IsSolana() bool {
	return strings.EqualFold(c.Name, "solana") || c.ID == SolanaChainID
}

// SolanaChainID is the pseudo chain id aggregators use for Solana.
const SolanaChainID = 501

// Action selects the routing direction of a quote.
type Action string

const (
	ActionTokenToPair Action = "TokenToPair"
	ActionPairToToken Action = "PairToToken"
)

// IsTokenToPair matches case-insensitively.
func (a Action) IsTokenToPair() bool {
	return strings.EqualFold(string(a), string(ActionTokenToPair))
}

// Request is the canonical quote request. It is never mutated once built.
type Request struct {
	Source        Token           `json:"source"`
	Dest          Token           `json:"dest"`
	Amount        decimal.Decimal `json:"amount"`
	Chain         Chain           `json:"chain"`
	Provider      string          `json:"provider"`
	Action        Action          `json:"action"`
	Wallet        string          `json:"wallet,omitempty"`
	Slippage      float64         `json:"slippage,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
	// Fallback forces the fallback aggregation route.
	Fallback bool `json:"fallback,omitempty"`
}

// Validate checks the fields every provider needs.
func (r Request) Validate() error {
	switch {
	case strings.TrimSpace(r.Source.Address) == "":
		return errors.New("source token address is required")
	case strings.TrimSpace(r.Dest.Address) == "":
		return errors.New("destination token address is required")
	case r.Source.Decimals < 0 || r.Dest.Decimals < 0:
		return errors.New("token decimals must be non-negative")
	case !r.Amount.IsPositive():
		return errors.New("amount must be greater than zero")
	case ToMinorUnits(r.Amount, r.Source.Decimals).Sign() <= 0:
		return errors.New("amount is below one minor unit of the source token")
	case r.Chain.ID <= 0:
		return errors.New("chain id is required")
	}
	return nil
}

// Route tells whether a result came from a provider directly or through the
// fallback aggregation service.
type Route string

const (
	RouteDirect   Route = "direct"
	RouteFallback Route = "fallback"
)

// Result is the canonical quote result.
type Result struct {
	Provider       string          `json:"provider"`
	ProviderLabel  string          `json:"providerLabel"`
	AmountOut      decimal.Decimal `json:"amountOut"`
	FeeEstimateUSD decimal.Decimal `json:"feeEstimateUsd"`
	SourceURL      string          `json:"sourceUrl"`
	CorrelationID  string          `json:"correlationId,omitempty"`
	Route          Route           `json:"route"`
}

// Settings is the per-call snapshot of user settings.
type Settings struct {
	ScanSpeedSeconds float64 `json:"scanSpeedSeconds"`
	Wallet           string  `json:"wallet,omitempty"`
	GasPriceGwei     float64 `json:"gasPriceGwei,omitempty"`
}

// DefaultScanSpeedSeconds applies when Settings.ScanSpeedSeconds is unset.
const DefaultScanSpeedSeconds = 4

// Timeout is the per provider call budget.
func (s Settings) Timeout() time.Duration {
	sec := s.ScanSpeedSeconds
	if sec <= 0 {
		sec = DefaultScanSpeedSeconds
	}
	return time.Duration(math.Round(sec*1000)) * time.Millisecond
}

// Signature is what a Signer hands back for one request.
type Signature struct {
	APIKey     string
	Signature  string
	Passphrase string
	Timestamp  string
}

// Signer signs authenticated provider requests.
type Signer interface {
	Sign(method, path, query string) (Signature, error)
}

// Aux is the per-call context builders and parsers receive next to the
// request.
type Aux struct {
	// AmountIn is Request.Amount in source minor units.
	AmountIn *big.Int
	Wallet   string
	ChainID  int
	Signer   Signer
	// FallbackFee is the static fee used when a provider omits its estimate.
	FallbackFee decimal.Decimal
}

// NewAux derives the auxiliary context for req. The request wallet wins
// over the settings wallet.
func NewAux(req Request, s Settings, signer Signer, fallbackFee decimal.Decimal) Aux {
	wallet := req.Wallet
	if wallet == "" {
		wallet = s.Wallet
	}
	return Aux{
		AmountIn:    ToMinorUnits(req.Amount, req.Source.Decimals),
		Wallet:      wallet,
		ChainID:     req.Chain.ID,
		Signer:      signer,
		FallbackFee: fallbackFee,
	}
}
