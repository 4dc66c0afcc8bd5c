package postgres

import (
	"context"
	"fmt"

	"github.com/fitshare-app/fitshare/internal/recordstore"
	"github.com/redis/go-redis/v9"
)

// Notifier carries creation hints between store clients, possibly across
// processes. Delivery is at-least-once and payload order is not guaranteed.
type Notifier interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// channelName maps a scope and owner to the pub/sub channel carrying its
// creation events. The public scope is one shared channel.
func channelName(scope recordstore.Scope, owner recordstore.UserRef) string {
	if scope == recordstore.ScopePublic {
		return "fitshare:records:public"
	}
	return fmt.Sprintf("fitshare:records:private:%s", owner)
}

// RedisNotifier implements Notifier over redis pub/sub.
type RedisNotifier struct {
	rdb *redis.Client
}

func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

func (n *RedisNotifier) Publish(ctx context.Context, channel string, payload []byte) error {
	return n.rdb.Publish(ctx, channel, payload).Err()
}

func (n *RedisNotifier) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	sub := n.rdb.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
