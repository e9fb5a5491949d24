// Package redisstore provides a Redis implementation of caseflow.Store.
// Checkpoints are stored as JSON values with an optional TTL, which fits
// deployments that treat case state as a working set rather than an
// archive (the archive lives in Postgres or the Kafka export).
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linnemanlabs/recourse/internal/caseflow"
)

const keyPrefix = "recourse:case:"

// Store persists case checkpoints in Redis.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis at redisURL and pings it. ttl <= 0 means
// checkpoints never expire.
func New(ctx context.Context, redisURL string, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{client: client, ttl: ttl}, nil
}

// Close shuts down the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Save checkpoints the case state, refreshing the TTL.
func (s *Store) Save(ctx context.Context, st *caseflow.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("redisstore: encode case %s: %w", st.ID, err)
	}
	if err := s.client.Set(ctx, keyPrefix+st.ID, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: set case %s: %w", st.ID, err)
	}
	return nil
}

// Load retrieves a case checkpoint by ID.
func (s *Store) Load(ctx context.Context, id string) (*caseflow.State, bool, error) {
	raw, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redisstore: get case %s: %w", id, err)
	}
	var st caseflow.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, false, fmt.Errorf("redisstore: decode case %s: %w", id, err)
	}
	return &st, true, nil
}
