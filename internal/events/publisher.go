// Package events publishes engine events over Redis PubSub so an API
// gateway or UI can stream fills and account updates without polling.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"papertrade-enginev1/internal/model"
)

// PubSub channels.
const (
	ChannelFills    = "pub:fills"
	ChannelAccounts = "pub:accounts"
)

// FillEvent describes an executed fill or risk exit.
type FillEvent struct {
	AccountID  string    `json:"account_id"`
	OrderID    string    `json:"order_id,omitempty"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Quantity   int64     `json:"quantity"`
	Price      float64   `json:"price"`
	Commission float64   `json:"commission"`
	Reason     string    `json:"reason,omitempty"` // set for risk exits
	At         time.Time `json:"at"`
}

// Publisher fans engine events out over Redis. A nil client makes every
// publish a no-op, so the engine runs unchanged without Redis.
type Publisher struct {
	client *goredis.Client
}

// NewPublisher wraps an optional Redis client.
func NewPublisher(client *goredis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishFill announces a fill or risk exit. Publish failures are logged,
// never propagated: eventing must not break execution.
func (p *Publisher) PublishFill(ctx context.Context, ev FillEvent) {
	p.publish(ctx, ChannelFills, ev)
}

// PublishAccount announces refreshed account totals.
func (p *Publisher) PublishAccount(ctx context.Context, a *model.Account) {
	p.publish(ctx, ChannelAccounts, a)
}

func (p *Publisher) publish(ctx context.Context, channel string, v any) {
	if p == nil || p.client == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[events] marshal for %s: %v", channel, err)
		return
	}
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		log.Printf("[events] publish %s: %v", channel, err)
	}
}
