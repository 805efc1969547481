package limiter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRedisLimiter_Integration(t *testing.T) {
	opts := &redis.Options{
		Addr: "localhost:6379",
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping integration test: Redis not available (%v)", err)
	}

	limit, err := NewLimit(2, 10*time.Second)
	if err != nil {
		t.Fatalf("NewLimit failed: %v", err)
	}
	limiter, err := NewRedisLimiter(client, limit)
	if err != nil {
		t.Fatalf("Failed to create RedisLimiter: %v", err)
	}

	t.Run("BasicFlow", func(t *testing.T) {
		key := fmt.Sprintf("it_test_%d", time.Now().UnixNano())
		now := time.Now()

		ok, err := limiter.AllowN(ctx, key, now, 2)
		if err != nil {
			t.Fatalf("Redis error: %v", err)
		}
		if !ok {
			t.Error("Expected first request to be Allowed")
		}

		ok, err = limiter.Allow(ctx, key, now)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Error("Expected second request to be Denied at the same instant")
		}

		// Half the window leaks half the capacity back.
		ok, err = limiter.Allow(ctx, key, now.Add(5*time.Second))
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Error("Expected request to be Allowed after leak")
		}
	})

	t.Run("SingleUnitBurstOnFreshKey", func(t *testing.T) {
		key := fmt.Sprintf("burst_test_%d", time.Now().UnixNano())
		now := time.Now()

		// Consecutive count-1 checks at one instant must stop at the
		// capacity, exactly like the in-memory map.
		admitted := 0
		for i := 0; i < 10; i++ {
			ok, err := limiter.Allow(ctx, key, now)
			if err != nil {
				t.Fatalf("Allow failed: %v", err)
			}
			if ok {
				admitted++
			}
		}
		if admitted != 2 {
			t.Errorf("Expected 2 of 10 single-unit requests admitted on a fresh key, got %d", admitted)
		}
	})

	t.Run("DistributedState", func(t *testing.T) {
		key := fmt.Sprintf("dist_test_%d", time.Now().UnixNano())
		now := time.Now()

		// Instance A consumes the whole budget
		limiterA, _ := NewRedisLimiter(client, limit) // Simulate Node A
		limiterA.AllowN(ctx, key, now, 2)

		// Instance B checks the same key
		limiterB, _ := NewRedisLimiter(client, limit) // Simulate Node B
		ok, err := limiterB.Allow(ctx, key, now)

		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Error("Instance B should see the budget consumed by Instance A")
		}
	})

	t.Run("OutOfOrderTimestamp", func(t *testing.T) {
		key := fmt.Sprintf("ord_test_%d", time.Now().UnixNano())
		now := time.Now()

		if _, err := limiter.AllowN(ctx, key, now, 2); err != nil {
			t.Fatal(err)
		}
		_, err := limiter.Allow(ctx, key, now.Add(-time.Second))
		if err == nil {
			t.Fatal("Expected an ordering error, got nil")
		}
	})

	t.Run("DrainedKeyIsReclaimed", func(t *testing.T) {
		key := fmt.Sprintf("gc_test_%d", time.Now().UnixNano())
		now := time.Now()

		if _, err := limiter.AllowN(ctx, key, now, 2); err != nil {
			t.Fatal(err)
		}

		// A single-unit check after a full window deletes the Redis key.
		ok, err := limiter.Allow(ctx, key, now.Add(10*time.Second))
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Error("Expected drained bucket to admit a single unit")
		}

		exists, err := client.Exists(ctx, "limiter:"+key).Result()
		if err != nil {
			t.Fatalf("Redis Exists failed: %v", err)
		}
		if exists != 0 {
			t.Error("Expected drained key to be deleted")
		}
	})
}

func TestRedisLimiter_ContextCancellation(t *testing.T) {
	opt, _ := redis.ParseURL("redis://localhost:6379")
	client := redis.NewClient(opt)
	defer client.Close()

	limit, err := NewLimit(100, time.Second)
	if err != nil {
		t.Fatalf("NewLimit failed: %v", err)
	}
	limiter, err := NewRedisLimiter(client, limit)
	if err != nil {
		t.Skipf("Skipping test: Redis not available (%v)", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = limiter.Allow(ctx, "user_cancel", time.Now())

	if err == nil {
		t.Fatal("Expected an error due to cancelled context, but got nil")
	}
}
