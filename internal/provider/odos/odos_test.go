package odos_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"dexquote/internal/provider/odos"
	"dexquote/internal/quote"
)

func request(wallet string) (quote.Request, quote.Aux) {
	req := quote.Request{
		Source:   quote.Token{Address: "0x55d398326f99059fF775485246999027B3197955", Decimals: 18},
		Dest:     quote.Token{Address: "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", Decimals: 18},
		Amount:   decimal.NewFromInt(600),
		Chain:    quote.Chain{ID: 56, Name: "bsc"},
		Provider: "odos",
	}
	return req, quote.NewAux(req, quote.Settings{Wallet: wallet}, nil, decimal.RequireFromString("0.1"))
}

func TestBuildRequest(t *testing.T) {
	t.Parallel()

	req, aux := request("0xWallet")

	tr, err := odos.New().BuildRequest(req, aux)
	require.NoError(t, err)
	require.Equal(t, odos.DefaultURL, tr.URL)
	require.Equal(t, "POST", tr.Method)

	var body struct {
		ChainID     int    `json:"chainId"`
		Compact     bool   `json:"compact"`
		DisableRFQs bool   `json:"disableRFQs"`
		UserAddr    string `json:"userAddr"`
		InputTokens []struct {
			Amount       string `json:"amount"`
			TokenAddress string `json:"tokenAddress"`
		} `json:"inputTokens"`
		OutputTokens []struct {
			Proportion   int    `json:"proportion"`
			TokenAddress string `json:"tokenAddress"`
		} `json:"outputTokens"`
		SlippageLimitPercent float64 `json:"slippageLimitPercent"`
	}
	require.NoError(t, json.Unmarshal(tr.Body, &body))
	require.Equal(t, 56, body.ChainID)
	require.True(t, body.Compact)
	require.True(t, body.DisableRFQs)
	require.Equal(t, "0xWallet", body.UserAddr)
	require.Len(t, body.InputTokens, 1)
	require.Equal(t, "600000000000000000000", body.InputTokens[0].Amount)
	require.Equal(t, "0x55d398326f99059ff775485246999027b3197955", body.InputTokens[0].TokenAddress)
	require.Len(t, body.OutputTokens, 1)
	require.Equal(t, 1, body.OutputTokens[0].Proportion)
	require.Equal(t, 0.3, body.SlippageLimitPercent)
}

func TestBuildRequestRequiresWallet(t *testing.T) {
	t.Parallel()

	req, aux := request("")

	_, err := odos.New().BuildRequest(req, aux)
	require.ErrorIs(t, err, odos.ErrWalletRequired)
}

func TestParseResponse(t *testing.T) {
	t.Parallel()

	req, aux := request("0xWallet")

	cases := map[string]struct {
		body   string
		amount string
		feeUSD string
	}{
		"array output":  {`{"outAmounts":["1000000000000000000"],"gasEstimateValue":0.07}`, "1", "0.07"},
		"scalar output": {`{"outAmounts":"2500000000000000000"}`, "2.5", "0.1"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			res, err := odos.New().ParseResponse([]byte(tc.body), req, aux)
			require.NoError(t, err)
			require.Equal(t, "ODOS", res.ProviderLabel)
			require.True(t, decimal.RequireFromString(tc.amount).Equal(res.AmountOut), res.AmountOut.String())
			require.True(t, decimal.RequireFromString(tc.feeUSD).Equal(res.FeeEstimateUSD), res.FeeEstimateUSD.String())
		})
	}
}

func TestParseResponseMissingAmount(t *testing.T) {
	t.Parallel()

	req, aux := request("0xWallet")
	for _, body := range []string{`{}`, `{"outAmounts":[]}`, `{"outAmounts":null}`} {
		_, err := odos.New().ParseResponse([]byte(body), req, aux)
		require.ErrorIsf(t, err, quote.ErrFieldMissing, "body %s", body)
	}
}
