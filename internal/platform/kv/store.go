// Package kv provides the key-value persistence used by the invoice
// repository: point get/set/delete plus prefix scans over JSON values.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kv: key not found")

// Store maps string keys to JSON documents.
type Store interface {
	// Get returns the raw JSON stored under key or ErrNotFound.
	Get(ctx context.Context, key string) (json.RawMessage, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value json.RawMessage) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// GetByPrefix returns every value whose key starts with prefix, in no particular order.
	GetByPrefix(ctx context.Context, prefix string) ([]json.RawMessage, error)
}

// Sequencer hands out monotonically increasing integers per name.
type Sequencer interface {
	// Next atomically increments the named counter and returns the new value.
	Next(ctx context.Context, name string) (int64, error)
	// SeedIfAbsent initialises the counter to value unless it already exists.
	SeedIfAbsent(ctx context.Context, name string, value int64) error
}

// Backend is a store that also provides sequences.
type Backend interface {
	Store
	Sequencer
}

const sequencePrefix = "sequence:"

// SequenceKey returns the key holding the named counter.
func SequenceKey(name string) string {
	return sequencePrefix + name
}

// GetJSON loads key and decodes it into dest.
func GetJSON(ctx context.Context, s Store, key string, dest any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("kv: decode %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes value and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kv: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}
