package quote

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedSymbols is the map size at which idle limiters are swept.
const maxTrackedSymbols = 1024

// symbolLimiter caps how often a single symbol may be requested. A denied
// call fails fast instead of waiting.
type symbolLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
	burst    int
	max      int
	now      func() time.Time
}

// newSymbolLimiter allows calls requests per period for each symbol.
// A non-positive calls disables the limit.
func newSymbolLimiter(calls int, period time.Duration) *symbolLimiter {
	s := &symbolLimiter{
		every:    rate.Inf,
		burst:    1,
		max:      maxTrackedSymbols,
		now:      time.Now,
		limiters: map[string]*rate.Limiter{},
	}
	if calls > 0 && period > 0 {
		s.every = rate.Every(period / time.Duration(calls))
		s.burst = calls
	}
	return s
}

func (s *symbolLimiter) allow(symbol string) error {
	if s.every == rate.Inf {
		return nil
	}
	now := s.now()

	s.mu.Lock()
	l, ok := s.limiters[symbol]
	if !ok {
		if len(s.limiters) >= s.max {
			s.sweep(now)
		}
		l = rate.NewLimiter(s.every, s.burst)
		s.limiters[symbol] = l
	}
	s.mu.Unlock()

	if !l.AllowN(now, 1) {
		return fmt.Errorf("%w: too many requests for %s", ErrGatewayUnavailable, symbol)
	}
	return nil
}

// sweep drops limiters that have refilled completely. Such a limiter behaves
// exactly like a new one, so forgetting it loses no budget. Callers hold mu.
func (s *symbolLimiter) sweep(now time.Time) {
	for symbol, l := range s.limiters {
		if l.TokensAt(now) >= float64(s.burst) {
			delete(s.limiters, symbol)
		}
	}
}

func (s *symbolLimiter) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}
