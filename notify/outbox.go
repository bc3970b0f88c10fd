package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/redis/go-redis/v9"
)

// OutboxKey is the redis list notifications are queued on. Producers push
// on the left, the mailer pops from the right.
const OutboxKey = "notifications:outbox"

// Outbox queues notifications on redis. Without a client notifications are
// logged and dropped.
type Outbox struct {
	client *redis.Client
}

func NewOutbox(client *redis.Client) *Outbox {
	return &Outbox{client: client}
}

func (o *Outbox) Available() bool {
	return o != nil && o.client != nil
}

func (o *Outbox) Push(ctx context.Context, n Notification) error {
	if !o.Available() {
		log.Printf("Notification outbox unavailable, dropping %s to %v: %s", n.Kind, n.To, n.Subject)
		return nil
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return o.client.LPush(ctx, OutboxKey, payload).Err()
}

// Pop takes the oldest notification. ok is false when the outbox is empty.
func (o *Outbox) Pop(ctx context.Context) (n Notification, ok bool, err error) {
	if !o.Available() {
		return Notification{}, false, nil
	}

	payload, err := o.client.RPop(ctx, OutboxKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return Notification{}, false, nil
	}
	if err != nil {
		return Notification{}, false, err
	}
	if err := json.Unmarshal(payload, &n); err != nil {
		return Notification{}, false, err
	}
	return n, true, nil
}

func (o *Outbox) Len(ctx context.Context) (int64, error) {
	if !o.Available() {
		return 0, nil
	}
	return o.client.LLen(ctx, OutboxKey).Result()
}
