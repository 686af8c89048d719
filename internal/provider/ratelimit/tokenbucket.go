package ratelimit

import (
	"time"

	"golang.org/x/time/rate"
)

// Limits configures the gate of one provider. MaxRequestsPerMinute takes
// precedence over MinInterval.
type Limits struct {
	MaxRequestsPerMinute int
	Burst                int
	MinInterval          time.Duration
}

// NewLimiter builds a token bucket for l. It returns nil when l imposes no
// limit.
//   - rpm: tokens per minute, burst defaults to 1
//   - min interval: one token per interval, no burst
func NewLimiter(l Limits) *rate.Limiter {
	switch {
	case l.MaxRequestsPerMinute > 0:
		burst := l.Burst
		if burst <= 0 {
			burst = 1
		}
		return rate.NewLimiter(rate.Limit(float64(l.MaxRequestsPerMinute)/60.0), burst)
	case l.MinInterval > 0:
		return rate.NewLimiter(rate.Every(l.MinInterval), 1)
	}
	return nil
}
