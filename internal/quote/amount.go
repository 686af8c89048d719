package quote

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ToMinorUnits scales amount by 10^decimals and rounds to the nearest integer.
func ToMinorUnits(amount decimal.Decimal, decimals int) *big.Int {
	return amount.Shift(int32(decimals)).Round(0).BigInt()
}

// FromMinorUnits divides a raw integer amount by 10^decimals.
func FromMinorUnits(raw decimal.Decimal, decimals int) decimal.Decimal {
	return raw.Shift(-int32(decimals))
}

// ParseDecimal reads a JSON number or numeric string. It reports false for
// absent, null, empty or non-numeric values.
func ParseDecimal(raw json.RawMessage) (decimal.Decimal, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return decimal.Zero, false
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return decimal.Zero, false
		}
		s = strings.TrimSpace(str)
	}
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// FeeOr returns the positive fee in raw or fallback otherwise.
func FeeOr(raw json.RawMessage, fallback decimal.Decimal) decimal.Decimal {
	if d, ok := ParseDecimal(raw); ok && d.IsPositive() {
		return d
	}
	return fallback
}

// FeeTable maps chain ids to a static swap fee estimate in USD.
type FeeTable map[int]decimal.Decimal

// For returns the fee for chainID, or zero when the chain is unknown.
func (t FeeTable) For(chainID int) decimal.Decimal {
	if fee, ok := t[chainID]; ok {
		return fee
	}
	return decimal.Zero
}
