package record

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis persists the record under a single key and signals changes over a
// pub/sub channel, which makes tabs on different machines converge as long
// as they share the Redis deployment.
//
// Every published notice carries the writing handle's origin ID; a handle
// discards notices bearing its own ID, so self-writes never echo back.
type Redis struct {
	client  redis.UniversalClient
	key     string
	channel string
	origin  string

	mu       sync.Mutex
	watching bool
	closed   bool
}

// redisNotice is the wire form of a change notification. Payload is carried
// as base64 so the envelope survives records that are not themselves JSON.
type redisNotice struct {
	Origin  string `json:"origin"`
	Removed bool   `json:"removed"`
	Payload []byte `json:"payload,omitempty"`
}

// NewRedis creates a Redis-backed handle for the record stored under key.
// Notifications travel over "<key>:events".
func NewRedis(client redis.UniversalClient, key string) *Redis {
	return &Redis{
		client:  client,
		key:     key,
		channel: key + ":events",
		origin:  uuid.NewString(),
	}
}

func (r *Redis) Load(ctx context.Context) ([]byte, error) {
	if err := r.alive(); err != nil {
		return nil, err
	}
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return data, nil
}

func (r *Redis) Save(ctx context.Context, payload []byte) error {
	if err := r.alive(); err != nil {
		return err
	}
	notice, err := json.Marshal(redisNotice{Origin: r.origin, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode change notice: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key, payload, 0)
		pipe.Publish(ctx, r.channel, notice)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.alive(); err != nil {
		return err
	}
	notice, err := json.Marshal(redisNotice{Origin: r.origin, Removed: true})
	if err != nil {
		return fmt.Errorf("encode change notice: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		pipe.Publish(ctx, r.channel, notice)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) Watch(ctx context.Context) (<-chan Change, error) {
	if err := r.alive(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.watching {
		r.mu.Unlock()
		return nil, ErrWatchActive
	}
	r.watching = true
	r.mu.Unlock()

	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		r.mu.Lock()
		r.watching = false
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out := make(chan Change)
	go func() {
		defer close(out)
		defer func() {
			_ = pubsub.Close()
			r.mu.Lock()
			r.watching = false
			r.mu.Unlock()
		}()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var notice redisNotice
				if err := json.Unmarshal([]byte(msg.Payload), &notice); err != nil {
					continue
				}
				if notice.Origin == r.origin {
					continue
				}
				change := Change{Removed: notice.Removed}
				if !notice.Removed {
					change.Payload = notice.Payload
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *Redis) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *Redis) alive() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrUnavailable
	}
	return nil
}
