package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/avelez/dexscan/internal/domain"
)

// OpportunityChannel is the Pub/Sub channel carrying profitable scan records
// as JSON payloads.
const OpportunityChannel = "opportunities"

// SignalBus implements domain.SignalBus using Redis Pub/Sub. Delivery is
// fire-and-forget: subscribers that are not connected when an opportunity is
// published never see it.
type SignalBus struct {
	rdb *redis.Client
}

// NewSignalBus creates a SignalBus backed by the given Client.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.rdb}
}

// PublishOpportunity broadcasts a profitable scan record to the opportunity
// channel.
func (sb *SignalBus) PublishOpportunity(ctx context.Context, rec domain.ScanRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis: marshal opportunity %s: %w", rec.ID, err)
	}
	if err := sb.rdb.Publish(ctx, OpportunityChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish opportunity %s: %w", rec.ID, err)
	}
	return nil
}

// Subscribe creates a Pub/Sub subscription on the opportunity channel and
// returns a read-only channel of raw JSON payloads. The subscription is
// closed when the context is cancelled; the returned channel is closed at
// that point as well.
func (sb *SignalBus) Subscribe(ctx context.Context) (<-chan []byte, error) {
	pubsub := sb.rdb.Subscribe(ctx, OpportunityChannel)

	// Verify the subscription is established by receiving the confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", OpportunityChannel, err)
	}

	// Closing the subscription on ctx.Done closes pubsub.Channel(), which
	// ends the forwarding loop.
	go func() {
		<-ctx.Done()
		_ = pubsub.Close()
	}()

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Compile-time interface check.
var _ domain.SignalBus = (*SignalBus)(nil)
