// Package signer signs authenticated aggregator requests with a credential
// drawn at random from a configured pool.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"dexquote/internal/quote"
)

// ErrEmptyPool is returned when no usable credential is configured.
var ErrEmptyPool = errors.New("signer: credential pool is empty")

// Credentials is one API key set.
type Credentials struct {
	APIKey     string `json:"api_key" yaml:"api_key"`
	Secret     string `json:"secret" yaml:"secret"`
	Passphrase string `json:"passphrase" yaml:"passphrase"`
}

// Sign returns base64(HMAC-SHA256(secret, payload)).
func Sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SelectCredential picks any credential from pool.
func SelectCredential(pool []Credentials) (Credentials, error) {
	if len(pool) == 0 {
		return Credentials{}, ErrEmptyPool
	}
	return pool[rand.IntN(len(pool))], nil
}

// TimestampLayout is ISO-8601 with milliseconds in UTC.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Pool implements quote.Signer over a credential pool.
type Pool struct {
	creds []Credentials
	now   func() time.Time
}

// Option configures a Pool.
type Option func(*Pool)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		p.now = now
	}
}

// NewPool keeps only credentials that carry both a key and a secret.
func NewPool(creds []Credentials, options ...Option) (*Pool, error) {
	usable := make([]Credentials, 0, len(creds))
	for _, c := range creds {
		if strings.TrimSpace(c.APIKey) == "" || strings.TrimSpace(c.Secret) == "" {
			continue
		}
		usable = append(usable, c)
	}
	if len(usable) == 0 {
		return nil, ErrEmptyPool
	}
	p := &Pool{creds: usable, now: time.Now}
	for _, option := range options {
		option(p)
	}
	return p, nil
}

// Size is the number of usable credentials.
func (p *Pool) Size() int { return len(p.creds) }

// Sign signs timestamp + METHOD + path [+ "?" + query].
func (p *Pool) Sign(method, path, query string) (quote.Signature, error) {
	c, err := SelectCredential(p.creds)
	if err != nil {
		return quote.Signature{}, err
	}
	ts := p.now().UTC().Format(TimestampLayout)
	prehash := ts + strings.ToUpper(method) + path
	if query != "" {
		prehash += "?" + query
	}
	return quote.Signature{
		APIKey:     c.APIKey,
		Signature:  Sign(c.Secret, prehash),
		Passphrase: c.Passphrase,
		Timestamp:  ts,
	}, nil
}

// ParseCredentials reads "key:secret:passphrase" entries separated by
// commas, the format used for environment overrides.
func ParseCredentials(s string) []Credentials {
	var out []Credentials
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		c := Credentials{APIKey: parts[0]}
		if len(parts) > 1 {
			c.Secret = parts[1]
		}
		if len(parts) > 2 {
			c.Passphrase = parts[2]
		}
		out = append(out, c)
	}
	return out
}
