package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	scanBatch = 200
	mgetBatch = 500
)

// RedisStore persists values as plain Redis strings. Keys are prefixed with an
// optional namespace so the store can share a database with asynq.
type RedisStore struct {
	client    redis.UniversalClient
	namespace string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, namespace string) *RedisStore {
	return &RedisStore{client: client, namespace: namespace}
}

func (s *RedisStore) key(k string) string {
	return s.namespace + k
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv/redis: get %s: %w", key, err)
	}
	return raw, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	if err := s.client.Set(ctx, s.key(key), []byte(value), 0).Err(); err != nil {
		return fmt.Errorf("kv/redis: set %s: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("kv/redis: delete %s: %w", key, err)
	}
	return nil
}

// GetByPrefix walks the keyspace with SCAN and loads matches with MGET. Keys
// removed between the scan and the read are skipped.
func (s *RedisStore) GetByPrefix(ctx context.Context, prefix string) ([]json.RawMessage, error) {
	pattern := escapeGlob(s.key(prefix)) + "*"
	seen := make(map[string]struct{})
	keys := make([]string, 0)
	var cursor uint64
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("kv/redis: scan %s: %w", prefix, err)
		}
		for _, k := range batch {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	out := make([]json.RawMessage, 0, len(keys))
	for start := 0; start < len(keys); start += mgetBatch {
		end := min(start+mgetBatch, len(keys))
		values, err := s.client.MGet(ctx, keys[start:end]...).Result()
		if err != nil {
			return nil, fmt.Errorf("kv/redis: mget %s: %w", prefix, err)
		}
		for _, v := range values {
			str, ok := v.(string)
			if !ok {
				continue
			}
			out = append(out, json.RawMessage(str))
		}
	}
	return out, nil
}

// Next implements Sequencer using INCR.
func (s *RedisStore) Next(ctx context.Context, name string) (int64, error) {
	v, err := s.client.Incr(ctx, s.key(SequenceKey(name))).Result()
	if err != nil {
		return 0, fmt.Errorf("kv/redis: incr %s: %w", name, err)
	}
	return v, nil
}

// SeedIfAbsent implements Sequencer using SETNX.
func (s *RedisStore) SeedIfAbsent(ctx context.Context, name string, value int64) error {
	if err := s.client.SetNX(ctx, s.key(SequenceKey(name)), value, 0).Err(); err != nil {
		return fmt.Errorf("kv/redis: seed %s: %w", name, err)
	}
	return nil
}

// escapeGlob quotes the characters SCAN MATCH treats as wildcards.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
