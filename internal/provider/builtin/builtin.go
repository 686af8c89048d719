// Package builtin lists the strategies compiled into the binary, keyed by
// the strategy name used in the provider table.
package builtin

import (
	"dexquote/internal/provider"
	"dexquote/internal/provider/kyber"
	"dexquote/internal/provider/odos"
	"dexquote/internal/provider/okx"
	"dexquote/internal/provider/oneinch"
	"dexquote/internal/provider/zerox"
)

// Strategies returns a fresh strategy set.
func Strategies() map[string]provider.Strategy {
	return map[string]provider.Strategy{
		"kyber": kyber.New(),
		"1inch": oneinch.New(),
		"odos":  odos.New(),
		"0x":    zerox.New(),
		"okx":   okx.New(),
	}
}
