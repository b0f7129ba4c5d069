package source

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiter implements per-domain rate limiting for HTTP providers.
type limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

func newLimiter(requestsPerSecond float64, burst int) *limiter {
	if burst <= 0 {
		burst = 2
	}
	return &limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  rate.Limit(requestsPerSecond),
		defaultBurst: burst,
	}
}

// wait blocks until the domain's rate limit clears, plus any extra
// crawl delay requested by robots.txt.
func (l *limiter) wait(ctx context.Context, rawURL string, extraDelay time.Duration) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return err
	}

	if err := l.getLimiter(parsed.Host).Wait(ctx); err != nil {
		return err
	}

	if extraDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(extraDelay):
		}
	}
	return nil
}

func (l *limiter) getLimiter(domain string) *rate.Limiter {
	l.mu.RLock()
	lim, exists := l.limiters[domain]
	l.mu.RUnlock()

	if exists {
		return lim
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, exists := l.limiters[domain]; exists {
		return lim
	}

	lim = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[domain] = lim
	return lim
}
