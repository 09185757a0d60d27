// Package kvstore defines the key-value contract the search engine is built
// on: set operations for postings, hash operations for records and scores,
// key scans for enumeration, and a counter for change tracking. pkg/redis
// provides the production implementation; Memory is an in-process one for
// tests and local development.
package kvstore

import (
	"context"
	"errors"
	"fmt"
)

// Store is the backing store contract. Implementations must make each
// single-key operation atomic; nothing is promised across keys.
type Store interface {
	// SAdd adds members to the set at key, creating it if needed.
	SAdd(ctx context.Context, key string, members ...string) error
	// SRem removes members from the set at key. A set left empty is deleted.
	SRem(ctx context.Context, key string, members ...string) error
	// SMembers returns the members of the set at key, or an empty slice.
	SMembers(ctx context.Context, key string) ([]string, error)

	// HSet stores the field/value pairs in the hash at key.
	HSet(ctx context.Context, key string, values map[string]string) error
	// HGetAll returns every field of the hash at key, or an empty map.
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// HIncrByFloat adds incr to the float stored in field and returns the
	// new value. A missing field counts as 0.
	HIncrByFloat(ctx context.Context, key, field string, incr float64) (float64, error)
	// HDel removes fields from the hash and reports how many existed.
	HDel(ctx context.Context, key string, fields ...string) (int64, error)
	// HLen returns the number of fields in the hash at key.
	HLen(ctx context.Context, key string) (int64, error)

	// Incr increments the integer at key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	// GetInt returns the integer at key, or 0 when the key is absent.
	GetInt(ctx context.Context, key string) (int64, error)

	// ScanKeys calls fn for every key matching the glob pattern. Iteration
	// stops at the first error returned by fn.
	ScanKeys(ctx context.Context, pattern string, fn func(key string) error) error
	// Del removes keys of any type and reports how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)

	Ping(ctx context.Context) error
}

// deleteChunk bounds the number of keys sent in one Del call.
const deleteChunk = 500

// DeleteByPattern removes every key matching pattern. It is best effort: a
// failed chunk does not stop later chunks and already deleted keys stay
// deleted. The returned error joins every failure.
func DeleteByPattern(ctx context.Context, s Store, pattern string) (int64, error) {
	var keys []string
	if err := s.ScanKeys(ctx, pattern, func(key string) error {
		keys = append(keys, key)
		return nil
	}); err != nil {
		return 0, fmt.Errorf("scanning %s: %w", pattern, err)
	}

	var deleted int64
	var errs []error
	for start := 0; start < len(keys); start += deleteChunk {
		end := min(start+deleteChunk, len(keys))
		n, err := s.Del(ctx, keys[start:end]...)
		if err != nil {
			errs = append(errs, fmt.Errorf("deleting keys %d-%d of %s: %w", start, end, pattern, err))
			continue
		}
		deleted += n
	}
	return deleted, errors.Join(errs...)
}

// CountKeys returns how many keys match pattern.
func CountKeys(ctx context.Context, s Store, pattern string) (int, error) {
	count := 0
	err := s.ScanKeys(ctx, pattern, func(string) error {
		count++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", pattern, err)
	}
	return count, nil
}
