package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestRedisQueue(t *testing.T) *RedisQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisQueue(rdb, "notifications:test")
}

func TestRedisQueuePopsOnlyDueNotifications(t *testing.T) {
	q := newTestRedisQueue(t)
	ctx := context.Background()
	now := time.Now()

	if err := q.Notify(ctx, Notification{To: "now@example.com", Subject: "now"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if err := q.Notify(ctx, Notification{To: "later@example.com", Subject: "later", DeliverAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	due, err := q.PopDue(ctx, now.Add(time.Second), 10)
	if err != nil {
		t.Fatalf("PopDue: %v", err)
	}
	if len(due) != 1 || due[0].To != "now@example.com" {
		t.Fatalf("due = %+v", due)
	}
	if due[0].ID == uuid.Nil {
		t.Fatal("notification id not assigned")
	}

	if n, _ := q.Len(ctx); n != 1 {
		t.Fatalf("pending = %d, want 1", n)
	}
	again, _ := q.PopDue(ctx, now.Add(time.Second), 10)
	if len(again) != 0 {
		t.Fatalf("notification delivered twice: %+v", again)
	}

	later, _ := q.PopDue(ctx, now.Add(2*time.Hour), 10)
	if len(later) != 1 || later[0].Subject != "later" {
		t.Fatalf("later = %+v", later)
	}
}

func TestRedisQueueRespectsLimit(t *testing.T) {
	q := newTestRedisQueue(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := q.Notify(ctx, Notification{To: "x@example.com", Subject: "s"}); err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}
	batch, err := q.PopDue(ctx, time.Now().Add(time.Second), 2)
	if err != nil || len(batch) != 2 {
		t.Fatalf("batch = %d, %v", len(batch), err)
	}
	if n, _ := q.Len(ctx); n != 3 {
		t.Fatalf("pending = %d, want 3", n)
	}
}

func TestMemoryQueueOrdersByDeliveryTime(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	now := time.Now()

	_ = q.Notify(ctx, Notification{Subject: "second", DeliverAt: now.Add(2 * time.Minute)})
	_ = q.Notify(ctx, Notification{Subject: "first", DeliverAt: now.Add(time.Minute)})
	_ = q.Notify(ctx, Notification{Subject: "future", DeliverAt: now.Add(time.Hour)})

	due, _ := q.PopDue(ctx, now.Add(5*time.Minute), 10)
	if len(due) != 2 || due[0].Subject != "first" || due[1].Subject != "second" {
		t.Fatalf("due = %+v", due)
	}
	if q.Len() != 1 {
		t.Fatalf("pending = %d, want 1", q.Len())
	}
}

func TestRecorderFiltersByRecipient(t *testing.T) {
	var r Recorder
	ctx := context.Background()
	_ = r.Notify(ctx, Notification{To: "a@example.com"})
	_ = r.Notify(ctx, Notification{To: "b@example.com"})
	_ = r.Notify(ctx, Notification{To: "a@example.com"})

	if got := len(r.To("a@example.com")); got != 2 {
		t.Fatalf("To(a) = %d, want 2", got)
	}
	if got := len(r.Sent()); got != 3 {
		t.Fatalf("Sent = %d, want 3", got)
	}
}
