// scan quotes every pair of a JSON pairs file on every provider and writes
// a streaming JSON report.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"dexquote/internal/app"
	"dexquote/internal/config"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: .env: %v\n", err)
	}
	cliApp := &cli.App{
		Name:  "scan",
		Usage: "Quote a list of pairs across providers",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Path to config.json or config.yaml", EnvVars: []string{"DEXQUOTE_CONFIG_FILE"}},
			&cli.StringFlag{Name: "pairs", Value: "pairs.json", Usage: "JSON file with the pairs to scan"},
			&cli.StringFlag{Name: "out", Value: "scan_report.json", Usage: "Output JSON file path"},
			&cli.StringSliceFlag{Name: "provider", Aliases: []string{"p"}, Usage: "Providers to quote (default: every non-alias provider)"},
			&cli.IntFlag{Name: "workers", Usage: "Pairs quoted in parallel (default: scan.workers)"},
			&cli.IntFlag{Name: "ppm", Usage: "Max pairs started per minute, 0 = unpaced (default: scan.max_pairs_per_minute)"},
		},
		Action: scanAction,
	}
	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func scanAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.Build(cfg, logger)
	if err != nil {
		return err
	}
	pairs, err := readPairs(c.String("pairs"))
	if err != nil {
		return fmt.Errorf("read pairs: %w", err)
	}
	if len(pairs) == 0 {
		return errors.New("no pairs found in pairs file")
	}

	workers := cfg.Scan.Workers
	if c.IsSet("workers") {
		workers = c.Int("workers")
	}
	ppm := cfg.Scan.MaxPairsPerMinute
	if c.IsSet("ppm") {
		ppm = c.Int("ppm")
	}
	s := &scanner{
		router:    a.Router,
		settings:  a.Settings,
		providers: c.StringSlice("provider"),
		workers:   workers,
		logger:    logger.Named("scan"),
	}
	if ppm > 0 {
		s.interval = time.Minute / time.Duration(ppm)
	}
	if len(s.providers) == 0 {
		for _, p := range a.Router.Providers() {
			if p.AliasOf == "" {
				s.providers = append(s.providers, p.Name)
			}
		}
	}

	outPath := c.String("out")
	outFile, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create out: %w", err)
	}
	defer outFile.Close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger.Info("scan started", zap.Int("pairs", len(pairs)), zap.Strings("providers", s.providers), zap.Int("workers", workers))
	sum, err := s.run(ctx, pairs, outFile)
	if err != nil {
		return err
	}
	logger.Info("scan done",
		zap.String("out", outPath),
		zap.Int("quotes", sum.Quotes),
		zap.Any("failures", sum.Failures),
		zap.String("duration", sum.Duration),
	)
	return nil
}
