package provider

import (
	"encoding/json"
	"fmt"

	"dexquote/internal/quote"
)

// Strategy builds the outbound request for one aggregator and normalizes
// its response. Both operations are pure.
type Strategy interface {
	// Label is the upper-case provider label shown in results and errors.
	Label() string
	BuildRequest(req quote.Request, aux quote.Aux) (quote.TransportRequest, error)
	ParseResponse(body []byte, req quote.Request, aux quote.Aux) (quote.Result, error)
}

// DeepLinker is implemented by strategies that can link to the trade on
// the provider's own site.
type DeepLinker interface {
	DeepLink(req quote.Request) string
}

// DeepLink returns the strategy's deep link for req, or "".
func DeepLink(s Strategy, req quote.Request) string {
	if dl, ok := s.(DeepLinker); ok {
		return dl.DeepLink(req)
	}
	return ""
}

// Decode unmarshals a provider body, labelling the error with the provider.
func Decode(label string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid %s response: %w", label, err)
	}
	return nil
}

// JSONRequest encodes body and returns a POST transport request.
func JSONRequest(url string, body any) (quote.TransportRequest, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return quote.TransportRequest{}, err
	}
	return quote.TransportRequest{
		URL:     url,
		Method:  "POST",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    b,
	}, nil
}
