// Package kvstoretest provides a kvstore.Store wrapper that fails chosen
// operations, for exercising partial-failure paths.
package kvstoretest

import (
	"context"
	"errors"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/kvstore"
)

// ErrInjected is returned by every operation a Faulty store is told to fail.
var ErrInjected = errors.New("injected failure")

// Faulty forwards to an inner Store unless a registered rule matches the
// operation name and key pattern. Op names are the Store method names.
type Faulty struct {
	kvstore.Store

	mu    sync.RWMutex
	rules []rule
}

type rule struct {
	op      string
	pattern string
}

func Wrap(s kvstore.Store) *Faulty {
	return &Faulty{Store: s}
}

// FailOn makes op fail for keys matching the glob pattern.
func (f *Faulty) FailOn(op, pattern string) *Faulty {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{op: op, pattern: pattern})
	return f
}

// Heal drops every rule.
func (f *Faulty) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = nil
}

func (f *Faulty) fails(op, key string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, r := range f.rules {
		if r.op == op && kvstore.Match(r.pattern, key) {
			return true
		}
	}
	return false
}

func (f *Faulty) SAdd(ctx context.Context, key string, members ...string) error {
	if f.fails("SAdd", key) {
		return ErrInjected
	}
	return f.Store.SAdd(ctx, key, members...)
}

func (f *Faulty) SRem(ctx context.Context, key string, members ...string) error {
	if f.fails("SRem", key) {
		return ErrInjected
	}
	return f.Store.SRem(ctx, key, members...)
}

func (f *Faulty) SMembers(ctx context.Context, key string) ([]string, error) {
	if f.fails("SMembers", key) {
		return nil, ErrInjected
	}
	return f.Store.SMembers(ctx, key)
}

func (f *Faulty) HSet(ctx context.Context, key string, values map[string]string) error {
	if f.fails("HSet", key) {
		return ErrInjected
	}
	return f.Store.HSet(ctx, key, values)
}

func (f *Faulty) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if f.fails("HGetAll", key) {
		return nil, ErrInjected
	}
	return f.Store.HGetAll(ctx, key)
}

func (f *Faulty) HIncrByFloat(ctx context.Context, key, field string, incr float64) (float64, error) {
	if f.fails("HIncrByFloat", key) {
		return 0, ErrInjected
	}
	return f.Store.HIncrByFloat(ctx, key, field, incr)
}

// Del fails the whole call when any of keys matches.
func (f *Faulty) Del(ctx context.Context, keys ...string) (int64, error) {
	for _, k := range keys {
		if f.fails("Del", k) {
			return 0, ErrInjected
		}
	}
	return f.Store.Del(ctx, keys...)
}
