package aggregate

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"dexquote/internal/quote"
)

// Ranked is one provider's best quote for a pair.
type Ranked struct {
	Rank           int             `json:"rank"`
	Provider       string          `json:"provider"`
	AmountOut      decimal.Decimal `json:"amountOut"`
	FeeEstimateUSD decimal.Decimal `json:"feeEstimateUsd"`
	Route          quote.Route     `json:"route"`
	SourceURL      string          `json:"sourceUrl,omitempty"`
}

// Spread compares the best and worst ranked quotes.
type Spread struct {
	Best        string          `json:"best"`
	Worst       string          `json:"worst"`
	BestAmount  decimal.Decimal `json:"bestAmount"`
	WorstAmount decimal.Decimal `json:"worstAmount"`
	// Percent is (best - worst) / best * 100.
	Percent decimal.Decimal `json:"percent"`
}

// aliasMap normalizes provider spellings and labels.
var aliasMap = map[string]string{
	"kyber":     "KYBER",
	"kyberswap": "KYBER",
	"1inch":     "1INCH",
	"oneinch":   "1INCH",
	"lifi":      "1INCH",
	"odos":      "ODOS",
	"0x":        "0X",
	"zerox":     "0X",
	"matcha":    "0X",
	"okx":       "OKX",
	"okxdex":    "OKX",
}

// NormalizeProvider maps a provider key or label to its display label.
// Unknown names are upper-cased.
func NormalizeProvider(name string) string {
	s := strings.TrimSpace(name)
	if norm, ok := aliasMap[strings.ToLower(s)]; ok {
		return norm
	}
	return strings.ToUpper(s)
}

// Rank collapses results by normalized provider, keeping the larger
// AmountOut (lower fee on ties), and orders them by AmountOut desc then fee
// asc. Results without a positive AmountOut are dropped.
func Rank(results []quote.Result) []Ranked {
	best := make(map[string]Ranked, len(results))
	for _, r := range results {
		if !r.AmountOut.IsPositive() {
			continue
		}
		name := r.ProviderLabel
		if name == "" {
			name = r.Provider
		}
		name = NormalizeProvider(name)
		cand := Ranked{
			Provider:       name,
			AmountOut:      r.AmountOut,
			FeeEstimateUSD: r.FeeEstimateUSD,
			Route:          r.Route,
			SourceURL:      r.SourceURL,
		}
		if cur, ok := best[name]; !ok || better(cand, cur) {
			best[name] = cand
		}
	}

	out := make([]Ranked, 0, len(best))
	for _, v := range best {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if better(out[i], out[j]) {
			return true
		}
		if better(out[j], out[i]) {
			return false
		}
		return out[i].Provider < out[j].Provider
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func better(a, b Ranked) bool {
	if c := a.AmountOut.Cmp(b.AmountOut); c != 0 {
		return c > 0
	}
	return a.FeeEstimateUSD.LessThan(b.FeeEstimateUSD)
}

// SpreadOf needs at least two ranked providers.
func SpreadOf(ranked []Ranked) (Spread, bool) {
	if len(ranked) < 2 {
		return Spread{}, false
	}
	hi, lo := ranked[0], ranked[len(ranked)-1]
	return Spread{
		Best:        hi.Provider,
		Worst:       lo.Provider,
		BestAmount:  hi.AmountOut,
		WorstAmount: lo.AmountOut,
		Percent:     hi.AmountOut.Sub(lo.AmountOut).Div(hi.AmountOut).Mul(decimal.NewFromInt(100)).Round(4),
	}, true
}
