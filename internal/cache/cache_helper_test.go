package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*CacheHelper, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewCacheHelper(client, "stats:"), mr
}

type cachedStats struct {
	ExamID uint    `json:"exam_id"`
	Count  int     `json:"count"`
	Avg    float64 `json:"avg"`
}

func TestCacheHelper_GetSet(t *testing.T) {
	ctx := context.Background()
	helper, _ := newTestCache(t)

	stored := cachedStats{ExamID: 1, Count: 12, Avg: 6.67}
	if err := helper.Set(ctx, "exam:1:summary", stored, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var loaded cachedStats
	if err := helper.Get(ctx, "exam:1:summary", &loaded); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if loaded != stored {
		t.Errorf("loaded = %+v, want %+v", loaded, stored)
	}
}

func TestCacheHelper_GetMissing(t *testing.T) {
	ctx := context.Background()
	helper, _ := newTestCache(t)

	var dest cachedStats
	if err := helper.Get(ctx, "exam:999:summary", &dest); err != ErrCacheNotFound {
		t.Errorf("expected ErrCacheNotFound, got %v", err)
	}
}

func TestCacheHelper_NilClient(t *testing.T) {
	ctx := context.Background()
	helper := NewCacheHelper(nil, "stats:")

	var dest cachedStats
	if err := helper.Get(ctx, "k", &dest); err != ErrCacheNotAvailable {
		t.Errorf("Get: expected ErrCacheNotAvailable, got %v", err)
	}
	if err := helper.InvalidatePattern(ctx, "exam:*"); err != nil {
		t.Errorf("InvalidatePattern on nil client must be a no-op, got %v", err)
	}
}

func TestCacheHelper_CacheOrExecute(t *testing.T) {
	ctx := context.Background()
	helper, _ := newTestCache(t)

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return cachedStats{ExamID: 2, Count: 5, Avg: 7.5}, nil
	}

	var first cachedStats
	if err := helper.CacheOrExecute(ctx, "exam:2:summary", &first, time.Minute, fetch); err != nil {
		t.Fatalf("first CacheOrExecute failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("fetch calls = %d, want 1", calls)
	}
	if first.Count != 5 {
		t.Errorf("first.Count = %d, want 5", first.Count)
	}

	// The write-behind goroutine needs a moment to land
	deadline := time.Now().Add(time.Second)
	for {
		var second cachedStats
		if err := helper.Get(ctx, "exam:2:summary", &second); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("value never appeared in cache")
		}
		time.Sleep(10 * time.Millisecond)
	}

	var second cachedStats
	if err := helper.CacheOrExecute(ctx, "exam:2:summary", &second, time.Minute, fetch); err != nil {
		t.Fatalf("second CacheOrExecute failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("fetch calls = %d, want 1 (second read served from cache)", calls)
	}
	if second != first {
		t.Errorf("second = %+v, want %+v", second, first)
	}
}

func TestCacheHelper_InvalidatePattern(t *testing.T) {
	ctx := context.Background()
	helper, mr := newTestCache(t)

	for _, key := range []string{"exam:1:summary", "exam:1:results", "exam:2:summary"} {
		if err := helper.Set(ctx, key, cachedStats{ExamID: 1}, time.Minute); err != nil {
			t.Fatalf("Set %s failed: %v", key, err)
		}
	}

	if err := helper.InvalidatePattern(ctx, "exam:1:*"); err != nil {
		t.Fatalf("InvalidatePattern failed: %v", err)
	}

	var dest cachedStats
	if err := helper.Get(ctx, "exam:1:summary", &dest); err != ErrCacheNotFound {
		t.Errorf("exam:1:summary should be gone, got %v", err)
	}
	if err := helper.Get(ctx, "exam:2:summary", &dest); err != nil {
		t.Errorf("exam:2:summary should survive, got %v", err)
	}
	if mr.Exists("stats:exam:1:results") {
		t.Error("stats:exam:1:results still present")
	}
}

func TestCacheManager(t *testing.T) {
	t.Run("NilClient", func(t *testing.T) {
		cm := NewCacheManager(nil)
		if cm.Stats == nil || cm.Exam == nil {
			t.Fatal("helpers must exist even without a client")
		}
		if err := cm.HealthCheck(context.Background()); err != ErrCacheNotAvailable {
			t.Errorf("expected ErrCacheNotAvailable, got %v", err)
		}
	})

	t.Run("WithClient", func(t *testing.T) {
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("failed to start miniredis: %v", err)
		}
		defer mr.Close()

		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer client.Close()

		cm := NewCacheManager(client)
		if err := cm.HealthCheck(context.Background()); err != nil {
			t.Errorf("health check failed: %v", err)
		}
	})
}
