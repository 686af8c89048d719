package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dexquote/internal/aggregate"
	"dexquote/internal/engine"
	"dexquote/internal/quote"
)

const correlationHeader = "X-Correlation-ID"

type server struct {
	router       *engine.Router
	settings     quote.Settings
	logger       *zap.Logger
	timeout      time.Duration
	maxProviders int
}

type quoteBody struct {
	quote.Request
	// Settings replaces the server's settings snapshot for this call.
	Settings *quote.Settings `json:"settings,omitempty"`
}

type quotesBody struct {
	quote.Request
	Providers []string        `json:"providers"`
	Settings  *quote.Settings `json:"settings,omitempty"`
}

type quotesResponse struct {
	CorrelationID string             `json:"correlationId"`
	Results       []quote.Result     `json:"results"`
	Errors        []*quote.Error     `json:"errors"`
	Ranking       []aggregate.Ranked `json:"ranking"`
	Spread        *aggregate.Spread  `json:"spread,omitempty"`
}

type providersResponse struct {
	Providers []engine.ProviderInfo `json:"providers"`
}

func (s *server) handleProviders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, providersResponse{Providers: s.router.Providers()})
}

func (s *server) handleQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var b quoteBody
	if !decodeBody(w, r, &b) {
		return
	}
	if strings.TrimSpace(b.Provider) == "" {
		http.Error(w, "provider cannot be empty", http.StatusBadRequest)
		return
	}
	req := withCorrelation(b.Request, r)
	w.Header().Set(correlationHeader, req.CorrelationID)

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	res, err := s.router.Quote(ctx, req, s.settingsFor(b.Settings))
	if err != nil {
		qe, ok := quote.AsError(err)
		if !ok {
			s.logger.Error("quote returned a non-quote error", zap.Error(err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, statusFor(qe.Classification), qe)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var b quotesBody
	if !decodeBody(w, r, &b) {
		return
	}
	providers := b.Providers
	if len(providers) == 0 {
		providers = s.defaultProviders()
	}
	if len(providers) > s.maxProviders {
		http.Error(w, "too many providers", http.StatusBadRequest)
		return
	}
	req := withCorrelation(b.Request, r)
	w.Header().Set(correlationHeader, req.CorrelationID)

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	outcomes := s.router.QuoteAll(ctx, providers, req, s.settingsFor(b.Settings))

	resp := quotesResponse{
		CorrelationID: req.CorrelationID,
		Results:       []quote.Result{},
		Errors:        []*quote.Error{},
	}
	for _, o := range outcomes {
		if o.Err != nil {
			resp.Errors = append(resp.Errors, o.Err)
			continue
		}
		resp.Results = append(resp.Results, *o.Result)
	}
	resp.Ranking = aggregate.Rank(resp.Results)
	if sp, ok := aggregate.SpreadOf(resp.Ranking); ok {
		resp.Spread = &sp
	}
	if len(resp.Results) == 0 && len(resp.Errors) > 0 {
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// defaultProviders is every provider that is not an alias.
func (s *server) defaultProviders() []string {
	var out []string
	for _, p := range s.router.Providers() {
		if p.AliasOf == "" {
			out = append(out, p.Name)
		}
	}
	return out
}

func (s *server) settingsFor(override *quote.Settings) quote.Settings {
	if override == nil {
		return s.settings
	}
	return *override
}

func statusFor(c quote.Classification) int {
	switch c {
	case quote.Timeout:
		return http.StatusGatewayTimeout
	case quote.HTTPError, quote.ParseError:
		return http.StatusBadGateway
	}
	return http.StatusUnprocessableEntity
}

func withCorrelation(req quote.Request, r *http.Request) quote.Request {
	if req.CorrelationID == "" {
		req.CorrelationID = r.Header.Get(correlationHeader)
	}
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	return req
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
