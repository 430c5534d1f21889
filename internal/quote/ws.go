package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"papertrade-enginev1/internal/model"
)

// wsTick is the JSON wire format of a streaming tick.
type wsTick struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Volume int64   `json:"volume"`
	TS     int64   `json:"ts"` // unix milliseconds
}

// FeedConfig configures the streaming feed.
type FeedConfig struct {
	URL string

	// MaxAge marks a stored quote stale. GetQuote refuses quotes older than
	// this so a dead feed fails closed instead of serving frozen prices.
	MaxAge time.Duration
}

// Feed consumes a WebSocket tick stream and serves GetQuote from the latest
// tick per symbol. It reconnects with backoff until its context ends.
type Feed struct {
	cfg FeedConfig

	mu     sync.RWMutex
	latest map[string]model.Quote

	// Optional metrics hook
	OnReconnect func()
}

// NewFeed creates a Feed; Run must be started for quotes to flow.
func NewFeed(cfg FeedConfig) *Feed {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 30 * time.Second
	}
	return &Feed{cfg: cfg, latest: make(map[string]model.Quote)}
}

// GetQuote returns the latest streamed quote for symbol, or
// ErrQuoteUnavailable if none has arrived or the last one is stale.
func (f *Feed) GetQuote(_ context.Context, symbol string) (model.Quote, error) {
	f.mu.RLock()
	q, ok := f.latest[symbol]
	f.mu.RUnlock()
	if !ok {
		return model.Quote{}, fmt.Errorf("%w: %s: no tick received", model.ErrQuoteUnavailable, symbol)
	}
	if time.Since(q.AsOf) > f.cfg.MaxAge {
		return model.Quote{}, fmt.Errorf("%w: %s: last tick stale", model.ErrQuoteUnavailable, symbol)
	}
	return q, nil
}

// Run connects and consumes ticks until ctx is cancelled, reconnecting with
// exponential backoff on failures.
func (f *Feed) Run(ctx context.Context) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		err := f.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Printf("[quotefeed] connection lost: %v — reconnecting in %v", err, backoff)
		if f.OnReconnect != nil {
			f.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// consume runs one connection until it fails or ctx ends.
func (f *Feed) consume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.cfg.URL, err)
	}
	defer conn.Close()
	log.Printf("[quotefeed] connected to %s", f.cfg.URL)

	// Close the connection when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var tick wsTick
		if err := json.Unmarshal(data, &tick); err != nil {
			log.Printf("[quotefeed] bad tick: %v", err)
			continue
		}
		if tick.Symbol == "" || tick.Price <= 0 {
			continue
		}

		asOf := time.UnixMilli(tick.TS)
		if tick.TS == 0 {
			asOf = time.Now()
		}
		f.mu.Lock()
		f.latest[tick.Symbol] = model.Quote{
			Symbol: tick.Symbol,
			Price:  tick.Price,
			Volume: tick.Volume,
			AsOf:   asOf,
		}
		f.mu.Unlock()
	}
}
