package broadcast

import (
	"context"
	"encoding/json"

	"auction-house/utils"

	"github.com/go-redis/redis/v9"
)

// RedisChannel is the pub/sub channel auction events are published on.
const RedisChannel = "auction-house:events"

// RedisPublisher forwards auction events to a Redis pub/sub channel so
// observers in other processes can follow along. Fire-and-forget: publish
// failures are logged and dropped, never surfaced to the bid path.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher creates a publisher over the given Redis address
func NewRedisPublisher(addr string) *RedisPublisher {
	return &RedisPublisher{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Publish marshals the event as JSON and publishes it
func (p *RedisPublisher) Publish(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		utils.Error("failed to marshal broadcast event", map[string]any{
			"type":  event.Type,
			"error": err.Error(),
		})
		return
	}

	if err := p.client.Publish(context.Background(), RedisChannel, payload).Err(); err != nil {
		utils.Warn("failed to publish broadcast event", map[string]any{
			"type":       event.Type,
			"auction_id": event.Auction.AuctionID,
			"error":      err.Error(),
		})
	}
}

// Close releases the underlying Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
