// fetch quotes one pair from the command line.
//
// Usage:
//
//	fetch quote --provider kyber --chain-id 1 --chain ethereum --from 0x... --to 0x... --amount 1
//	fetch quote --provider kyber,odos,magpie ... (fan-out with ranking)
//	fetch providers
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"dexquote/internal/aggregate"
	"dexquote/internal/app"
	"dexquote/internal/config"
	"dexquote/internal/engine"
	"dexquote/internal/quote"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: .env: %v\n", err)
	}
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer, opts ...app.Option) *cli.App {
	return &cli.App{
		Name:   "fetch",
		Usage:  "Quote a token pair on one or more DEX aggregators",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to config.json or config.yaml",
				EnvVars: []string{"DEXQUOTE_CONFIG_FILE"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"DEXQUOTE_LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			quoteCommand(opts),
			providersCommand(opts),
		},
	}
}

// build loads config and wires the engine for one command.
func build(c *cli.Context, opts []app.Option) (*app.App, config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, cfg, err
	}
	cfg.Log.Level = c.String("log-level")
	cfg.Log.Format = "console"
	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		return nil, cfg, err
	}
	a, err := app.Build(cfg, logger, opts...)
	return a, cfg, err
}

func quoteCommand(opts []app.Option) *cli.Command {
	return &cli.Command{
		Name:  "quote",
		Usage: "Quote one pair; several providers fan out and are ranked",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "provider", Aliases: []string{"p"}, Usage: "Provider key(s)", Required: true},
			&cli.IntFlag{Name: "chain-id", Usage: "Chain id", Required: true},
			&cli.StringFlag{Name: "chain", Usage: "Chain name (ethereum, bsc, solana, ...)"},
			&cli.StringFlag{Name: "from", Usage: "Source token address", Required: true},
			&cli.IntFlag{Name: "from-decimals", Value: 18, Usage: "Source token decimals"},
			&cli.StringFlag{Name: "to", Usage: "Destination token address", Required: true},
			&cli.IntFlag{Name: "to-decimals", Value: 18, Usage: "Destination token decimals"},
			&cli.StringFlag{Name: "amount", Aliases: []string{"a"}, Usage: "Amount in source token units", Required: true},
			&cli.StringFlag{Name: "action", Value: string(quote.ActionTokenToPair), Usage: "TokenToPair or PairToToken"},
			&cli.StringFlag{Name: "wallet", Usage: "Wallet address (defaults to settings.wallet)"},
			&cli.Float64Flag{Name: "slippage", Usage: "Slippage percent"},
			&cli.BoolFlag{Name: "fallback", Usage: "Force the fallback relay"},
			&cli.Float64Flag{Name: "scan-speed", Usage: "Per-call timeout in seconds"},
		},
		Action: func(c *cli.Context) error {
			req, err := requestFromFlags(c)
			if err != nil {
				return err
			}
			a, _, err := build(c, opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Logger.Sync() }()

			settings := a.Settings
			if c.IsSet("scan-speed") {
				settings.ScanSpeedSeconds = c.Float64("scan-speed")
			}
			providers := splitProviders(c.StringSlice("provider"))
			ctx, cancel := context.WithTimeout(c.Context, settings.Timeout()+5*time.Second)
			defer cancel()

			if len(providers) == 1 {
				req.Provider = providers[0]
				res, err := a.Router.Quote(ctx, req, settings)
				if err != nil {
					if qe, ok := quote.AsError(err); ok {
						_ = printJSON(c.App.Writer, qe)
					}
					return err
				}
				return printJSON(c.App.Writer, res)
			}
			return printJSON(c.App.Writer, fanOut(a.Router.QuoteAll(ctx, providers, req, settings)))
		},
	}
}

func providersCommand(opts []app.Option) *cli.Command {
	return &cli.Command{
		Name:  "providers",
		Usage: "List the configured providers",
		Action: func(c *cli.Context) error {
			a, _, err := build(c, opts)
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, a.Router.Providers())
		},
	}
}

func requestFromFlags(c *cli.Context) (quote.Request, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(c.String("amount")))
	if err != nil {
		return quote.Request{}, fmt.Errorf("invalid --amount %q: %w", c.String("amount"), err)
	}
	return quote.Request{
		Source:        quote.Token{Address: c.String("from"), Decimals: c.Int("from-decimals")},
		Dest:          quote.Token{Address: c.String("to"), Decimals: c.Int("to-decimals")},
		Amount:        amount,
		Chain:         quote.Chain{ID: c.Int("chain-id"), Name: c.String("chain")},
		Action:        quote.Action(c.String("action")),
		Wallet:        c.String("wallet"),
		Slippage:      c.Float64("slippage"),
		CorrelationID: uuid.NewString(),
		Fallback:      c.Bool("fallback"),
	}, nil
}

// splitProviders accepts repeated flags and comma lists.
func splitProviders(in []string) []string {
	var out []string
	for _, v := range in {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

type fanOutReport struct {
	Outcomes []engine.Outcome   `json:"outcomes"`
	Ranking  []aggregate.Ranked `json:"ranking"`
	Spread   *aggregate.Spread  `json:"spread,omitempty"`
}

func fanOut(outcomes []engine.Outcome) fanOutReport {
	var results []quote.Result
	for _, o := range outcomes {
		if o.Result != nil {
			results = append(results, *o.Result)
		}
	}
	r := fanOutReport{Outcomes: outcomes, Ranking: aggregate.Rank(results)}
	if sp, ok := aggregate.SpreadOf(r.Ranking); ok {
		r.Spread = &sp
	}
	return r
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
