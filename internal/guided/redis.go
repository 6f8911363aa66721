package guided

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps dialogues in Redis as JSON with a per-key expiry, so
// several engine processes can share them.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStore wraps an existing client. A ttl <= 0 uses DefaultTTL.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// DialRedis connects to the Redis server at url (redis://host:port/db)
// and checks it answers.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *RedisStore) Put(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode guided session: %w", err)
	}
	if err := r.client.Set(ctx, Key(s.SessionID, s.StepNumber), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("store guided session: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, sessionID string, step int) (*Session, error) {
	data, err := r.client.Get(ctx, Key(sessionID, step)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load guided session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode guided session: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string, step int) error {
	if err := r.client.Del(ctx, Key(sessionID, step)).Err(); err != nil {
		return fmt.Errorf("delete guided session: %w", err)
	}
	return nil
}
