// Package quote provides QuoteProvider adapters: a bounded-timeout wrapper,
// a Redis read-through cache, a WebSocket streaming feed and a static
// provider for simulation and tests.
package quote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"papertrade-enginev1/internal/model"
)

// DefaultTimeout bounds a single provider call so one bad symbol cannot
// stall a whole scheduler cycle.
const DefaultTimeout = 3 * time.Second

// TimeoutProvider wraps a provider with a per-call deadline. A provider that
// does not answer in time yields ErrQuoteUnavailable, not a hang.
type TimeoutProvider struct {
	Inner   model.QuoteProvider
	Timeout time.Duration
}

// WithTimeout wraps p with the default per-call deadline.
func WithTimeout(p model.QuoteProvider) *TimeoutProvider {
	return &TimeoutProvider{Inner: p, Timeout: DefaultTimeout}
}

// GetQuote calls the inner provider under a deadline.
func (t *TimeoutProvider) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		q   model.Quote
		err error
	}
	ch := make(chan result, 1)
	go func() {
		q, err := t.Inner.GetQuote(ctx, symbol)
		ch <- result{q, err}
	}()

	select {
	case r := <-ch:
		return r.q, r.err
	case <-ctx.Done():
		return model.Quote{}, fmt.Errorf("%w: %s: provider timeout", model.ErrQuoteUnavailable, symbol)
	}
}

// StaticProvider serves quotes from an in-memory table. It backs tests and
// offline simulation runs.
type StaticProvider struct {
	mu     sync.RWMutex
	quotes map[string]model.Quote
}

// NewStaticProvider creates an empty provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{quotes: make(map[string]model.Quote)}
}

// SetPrice sets the current price for a symbol.
func (s *StaticProvider) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[symbol] = model.Quote{
		Symbol: symbol,
		Price:  price,
		Volume: 1_000_000,
		AsOf:   time.Now(),
	}
}

// Remove deletes a symbol, making it unavailable.
func (s *StaticProvider) Remove(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quotes, symbol)
}

// GetQuote returns the stored quote or ErrQuoteUnavailable.
func (s *StaticProvider) GetQuote(_ context.Context, symbol string) (model.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[symbol]
	if !ok {
		return model.Quote{}, fmt.Errorf("%w: %s", model.ErrQuoteUnavailable, symbol)
	}
	return q, nil
}
