package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisCodeStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	store := NewRedisCodeStore(rdb, "verify:")
	ctx := context.Background()

	if err := store.Put(ctx, "7:a@example.com", "123456", 10*time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !mr.Exists("verify:7:a@example.com") {
		t.Fatal("code not stored under the prefixed key")
	}

	ok, err := store.Consume(ctx, "7:a@example.com", "000000")
	if err != nil || ok {
		t.Fatalf("wrong code = %v, %v", ok, err)
	}
	ok, err = store.Consume(ctx, "7:a@example.com", "123456")
	if err != nil || !ok {
		t.Fatalf("right code = %v, %v", ok, err)
	}
	ok, _ = store.Consume(ctx, "7:a@example.com", "123456")
	if ok {
		t.Fatal("code accepted twice")
	}
}

func TestRedisCodeStoreExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	store := NewRedisCodeStore(rdb, "verify:")
	ctx := context.Background()

	if err := store.Put(ctx, "k", "123456", time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	ok, err := store.Consume(ctx, "k", "123456")
	if err != nil || ok {
		t.Fatalf("expired code = %v, %v", ok, err)
	}
}

func TestMemoryCodeStore(t *testing.T) {
	store := NewMemoryCodeStore()
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_ = store.Put(ctx, "a", "111111", time.Minute)
	_ = store.Put(ctx, "b", "222222", time.Hour)

	if ok, _ := store.Consume(ctx, "a", "999999"); ok {
		t.Fatal("wrong code accepted")
	}
	if ok, _ := store.Consume(ctx, "a", "111111"); !ok {
		t.Fatal("right code rejected")
	}
	if ok, _ := store.Consume(ctx, "a", "111111"); ok {
		t.Fatal("code accepted twice")
	}

	_ = store.Put(ctx, "c", "333333", time.Minute)
	now = now.Add(2 * time.Minute)
	if removed := store.Sweep(); removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
	if ok, _ := store.Consume(ctx, "b", "222222"); !ok {
		t.Fatal("live code swept")
	}
}
