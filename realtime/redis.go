package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisFeed fans events out across nodes over redis pub/sub. Channel name is
// the scope key prefixed with "feed:".
type RedisFeed struct {
	client *redis.Client
}

var _ Feed = (*RedisFeed)(nil)

// NewRedisFeed connects with short timeouts; pub/sub reads are unbounded and
// use their own context.
func NewRedisFeed(addr string) *RedisFeed {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &RedisFeed{client: client}
}

// Healthy verifies redis connectivity.
func (f *RedisFeed) Healthy(ctx context.Context) bool {
	if f == nil || f.client == nil {
		return false
	}
	return f.client.Ping(ctx).Err() == nil
}

func (f *RedisFeed) channel(table, scopeID string) string {
	return "feed:" + scopeKey(table, scopeID)
}

func (f *RedisFeed) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshalling event")
	}
	return errors.Wrap(f.client.Publish(ctx, f.channel(ev.Table, ev.ScopeID), data).Err(), "publishing event")
}

func (f *RedisFeed) Subscribe(ctx context.Context, table, scopeID string) (<-chan Event, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	sub := f.client.Subscribe(ctx, f.channel(table, scopeID))
	// force the subscription before events may be published
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, errors.Wrap(err, "subscribing")
	}

	out := make(chan Event, subscriberBuffer)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := sub.Channel()
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				default: // slow consumer; drop
				}
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = sub.Close()
			close(done)
		})
	}
	return out, cancel, nil
}
