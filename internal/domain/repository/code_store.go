package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CodeStore keeps short-lived, single-use verification codes.
type CodeStore interface {
	Put(ctx context.Context, key, code string, ttl time.Duration) error
	// Consume reports whether code matches the live entry for key and, if so,
	// deletes it. A mismatch leaves the entry in place.
	Consume(ctx context.Context, key, code string) (bool, error)
}

// Deletes KEYS[1] only if it still holds ARGV[1].
var consumeScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

type redisCodeStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisCodeStore(rdb *redis.Client, prefix string) CodeStore {
	return &redisCodeStore{rdb: rdb, prefix: prefix}
}

func (s *redisCodeStore) Put(ctx context.Context, key, code string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, s.prefix+key, code, ttl).Err(); err != nil {
		return fmt.Errorf("redisCodeStore.Put: %w", err)
	}
	return nil
}

func (s *redisCodeStore) Consume(ctx context.Context, key, code string) (bool, error) {
	deleted, err := consumeScript.Run(ctx, s.rdb, []string{s.prefix + key}, code).Int64()
	if err != nil {
		return false, fmt.Errorf("redisCodeStore.Consume: %w", err)
	}
	return deleted == 1, nil
}

type codeEntry struct {
	code      string
	expiresAt time.Time
}

// MemoryCodeStore is a CodeStore for single-process deployments. Expired
// entries are rejected on read and removed by Sweep.
type MemoryCodeStore struct {
	mu      sync.Mutex
	entries map[string]codeEntry
	now     func() time.Time
}

func NewMemoryCodeStore() *MemoryCodeStore {
	return &MemoryCodeStore{
		entries: make(map[string]codeEntry),
		now:     time.Now,
	}
}

func (s *MemoryCodeStore) Put(_ context.Context, key, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = codeEntry{code: code, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryCodeStore) Consume(_ context.Context, key, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, key)
		return false, nil
	}
	if entry.code != code {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

// Sweep drops every expired entry and returns how many were removed.
func (s *MemoryCodeStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *MemoryCodeStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
