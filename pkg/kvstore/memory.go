package kvstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// Memory is a goroutine-safe in-process Store. Key typing follows Redis: a
// key holds either a set, a hash or a counter, and Del removes any of them.
type Memory struct {
	mu       sync.RWMutex
	sets     map[string]map[string]struct{}
	hashes   map[string]map[string]string
	counters map[string]int64
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		sets:     make(map[string]map[string]struct{}),
		hashes:   make(map[string]map[string]string),
		counters: make(map[string]int64),
	}
}

func (m *Memory) SAdd(_ context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, isHash := m.hashes[key]; isHash {
		return wrongType(key)
	}
	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]struct{}, len(members))
		m.sets[key] = set
	}
	for _, member := range members {
		set[member] = struct{}{}
	}
	return nil
}

func (m *Memory) SRem(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[key]
	if !ok {
		return nil
	}
	for _, member := range members {
		delete(set, member)
	}
	if len(set) == 0 {
		delete(m.sets, key)
	}
	return nil
}

func (m *Memory) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.sets[key]
	members := make([]string, 0, len(set))
	for member := range set {
		members = append(members, member)
	}
	sort.Strings(members)
	return members, nil
}

func (m *Memory) HSet(_ context.Context, key string, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, isSet := m.sets[key]; isSet {
		return wrongType(key)
	}
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string, len(values))
		m.hashes[key] = h
	}
	for field, value := range values {
		h[field] = value
	}
	return nil
}

func (m *Memory) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.hashes[key]))
	for field, value := range m.hashes[key] {
		out[field] = value
	}
	return out, nil
}

func (m *Memory) HIncrByFloat(_ context.Context, key, field string, incr float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, isSet := m.sets[key]; isSet {
		return 0, wrongType(key)
	}
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	var current float64
	if raw, exists := h[field]; exists {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("hash %s field %s is not a float", key, field)
		}
		current = v
	}
	current += incr
	h[field] = strconv.FormatFloat(current, 'f', -1, 64)
	return current, nil
}

func (m *Memory) HDel(_ context.Context, key string, fields ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		return 0, nil
	}
	var removed int64
	for _, field := range fields {
		if _, exists := h[field]; exists {
			delete(h, field)
			removed++
		}
	}
	if len(h) == 0 {
		delete(m.hashes, key)
	}
	return removed, nil
}

func (m *Memory) HLen(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.hashes[key])), nil
}

func (m *Memory) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]++
	return m.counters[key], nil
}

func (m *Memory) GetInt(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[key], nil
}

// ScanKeys visits matching keys in sorted order. fn runs without the lock
// held, so it may call back into the store.
func (m *Memory) ScanKeys(ctx context.Context, pattern string, fn func(key string) error) error {
	m.mu.RLock()
	keys := make([]string, 0)
	for key := range m.sets {
		if Match(pattern, key) {
			keys = append(keys, key)
		}
	}
	for key := range m.hashes {
		if Match(pattern, key) {
			keys = append(keys, key)
		}
	}
	for key := range m.counters {
		if Match(pattern, key) {
			keys = append(keys, key)
		}
	}
	m.mu.RUnlock()
	sort.Strings(keys)

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(key); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Del(_ context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for _, key := range keys {
		_, inSets := m.sets[key]
		_, inHashes := m.hashes[key]
		_, inCounters := m.counters[key]
		if inSets || inHashes || inCounters {
			removed++
		}
		delete(m.sets, key)
		delete(m.hashes, key)
		delete(m.counters, key)
	}
	return removed, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

func wrongType(key string) error {
	return fmt.Errorf("WRONGTYPE operation against key %s holding the wrong kind of value", key)
}
