package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pops up to ARGV[2] members of KEYS[1] whose score is <= ARGV[1].
var popDueScript = redis.NewScript(`
	local items = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, ARGV[2])
	for _, item in ipairs(items) do
		redis.call("ZREM", KEYS[1], item)
	end
	return items
`)

// RedisQueue stores pending notifications in a sorted set scored by delivery
// time in unix milliseconds.
type RedisQueue struct {
	rdb *redis.Client
	key string
	now func() time.Time
}

func NewRedisQueue(rdb *redis.Client, key string) *RedisQueue {
	return &RedisQueue{rdb: rdb, key: key, now: time.Now}
}

func (q *RedisQueue) Notify(ctx context.Context, n Notification) error {
	n = prepare(n, q.now())
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("RedisQueue.Notify: marshal: %w", err)
	}
	z := redis.Z{Score: float64(n.DeliverAt.UnixMilli()), Member: string(payload)}
	if err := q.rdb.ZAdd(ctx, q.key, z).Err(); err != nil {
		return fmt.Errorf("RedisQueue.Notify: %w", err)
	}
	return nil
}

func (q *RedisQueue) PopDue(ctx context.Context, now time.Time, limit int) ([]Notification, error) {
	raw, err := popDueScript.Run(ctx, q.rdb, []string{q.key},
		strconv.FormatInt(now.UnixMilli(), 10), limit).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("RedisQueue.PopDue: %w", err)
	}
	out := make([]Notification, 0, len(raw))
	for _, item := range raw {
		var n Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			// A malformed member is already removed; nothing left to retry.
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.ZCard(ctx, q.key).Result()
}

// MemoryQueue is the in-process Queue used with STORE_DRIVER=memory.
type MemoryQueue struct {
	mu      sync.Mutex
	pending []Notification
	now     func() time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{now: time.Now}
}

func (q *MemoryQueue) Notify(_ context.Context, n Notification) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, prepare(n, q.now()))
	sort.SliceStable(q.pending, func(i, j int) bool {
		return q.pending[i].DeliverAt.Before(q.pending[j].DeliverAt)
	})
	return nil
}

func (q *MemoryQueue) PopDue(_ context.Context, now time.Time, limit int) ([]Notification, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for n < len(q.pending) && n < limit && !q.pending[n].DeliverAt.After(now) {
		n++
	}
	due := make([]Notification, n)
	copy(due, q.pending[:n])
	q.pending = q.pending[n:]
	return due, nil
}

func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
