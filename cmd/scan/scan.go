package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dexquote/internal/aggregate"
	"dexquote/internal/engine"
	"dexquote/internal/quote"
)

// Pair is one row of the pairs file.
type Pair struct {
	ID string `json:"id"`
	quote.Request
	// Providers overrides the scan-wide provider list for this pair.
	Providers []string `json:"providers,omitempty"`
}

type row struct {
	Pair          string             `json:"pair"`
	CorrelationID string             `json:"correlationId"`
	Outcomes      []engine.Outcome   `json:"outcomes"`
	Ranking       []aggregate.Ranked `json:"ranking"`
	Spread        *aggregate.Spread  `json:"spread,omitempty"`
}

// Summary closes the report.
type Summary struct {
	Pairs    int                          `json:"pairs"`
	Quotes   int                          `json:"quotes"`
	Failures map[quote.Classification]int `json:"failures"`
	Duration string                       `json:"duration"`
}

type scanner struct {
	router    *engine.Router
	settings  quote.Settings
	providers []string
	workers   int
	// interval spaces pair starts; 0 means unpaced.
	interval time.Duration
	logger   *zap.Logger
}

func readPairs(path string) ([]Pair, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pairs []Pair
	if err := json.Unmarshal(b, &pairs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range pairs {
		if pairs[i].ID == "" {
			pairs[i].ID = fmt.Sprintf("pair-%d", i)
		}
	}
	return pairs, nil
}

// run quotes every pair and streams one report object to w.
func (s *scanner) run(ctx context.Context, pairs []Pair, w io.Writer) (Summary, error) {
	start := time.Now()
	bw := bufio.NewWriterSize(w, 1<<20)
	_, _ = bw.WriteString(`{"rows":[`)
	first := true
	var writeMu sync.Mutex
	sum := Summary{Pairs: len(pairs), Failures: make(map[quote.Classification]int)}

	var tokenCh <-chan time.Time
	if s.interval > 0 {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		tokenCh = t.C
	}

	workers := s.workers
	if workers <= 0 {
		workers = 1
	}
	jobs := make(chan Pair, workers*2)
	wg := sync.WaitGroup{}

	worker := func() {
		defer wg.Done()
		for p := range jobs {
			if tokenCh != nil {
				select {
				case <-tokenCh:
				case <-ctx.Done():
					continue
				}
			}
			if ctx.Err() != nil {
				continue
			}
			r := s.quotePair(ctx, p)
			b, err := json.Marshal(r)
			if err != nil {
				s.logger.Error("encode row", zap.String("pair", p.ID), zap.Error(err))
				continue
			}

			writeMu.Lock()
			if !first {
				_, _ = bw.WriteString(",")
			} else {
				first = false
			}
			_, _ = bw.Write(b)
			for _, o := range r.Outcomes {
				if o.Err != nil {
					sum.Failures[o.Err.Classification]++
				} else {
					sum.Quotes++
				}
			}
			writeMu.Unlock()
		}
	}

	for range workers {
		wg.Add(1)
		go worker()
	}
	for _, p := range pairs {
		jobs <- p
	}
	close(jobs)
	wg.Wait()

	sum.Duration = time.Since(start).Round(time.Millisecond).String()
	sb, err := json.Marshal(sum)
	if err != nil {
		return sum, err
	}
	_, _ = bw.WriteString(`],"summary":`)
	_, _ = bw.Write(sb)
	_, _ = bw.WriteString("}\n")
	if err := bw.Flush(); err != nil {
		return sum, fmt.Errorf("flush: %w", err)
	}
	return sum, ctx.Err()
}

func (s *scanner) quotePair(ctx context.Context, p Pair) row {
	req := p.Request
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	providers := p.Providers
	if len(providers) == 0 {
		providers = s.providers
	}
	outcomes := s.router.QuoteAll(ctx, providers, req, s.settings)

	var results []quote.Result
	for _, o := range outcomes {
		if o.Result != nil {
			results = append(results, *o.Result)
		}
	}
	r := row{Pair: p.ID, CorrelationID: req.CorrelationID, Outcomes: outcomes, Ranking: aggregate.Rank(results)}
	if sp, ok := aggregate.SpreadOf(r.Ranking); ok {
		r.Spread = &sp
	}
	s.logger.Debug("pair scanned",
		zap.String("pair", p.ID),
		zap.Int("providers", len(providers)),
		zap.Int("quotes", len(results)),
	)
	return r
}
