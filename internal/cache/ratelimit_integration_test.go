//go:build integration

package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/orgdir/orgdir/internal/testutil"
)

func TestIntegrationCheckIPRateLimit_Concurrent(t *testing.T) {
	redisURL := testutil.RequireEnv(t, "REDIS_URL")
	ctx := context.Background()

	c, err := New(ctx, redisURL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if err := testutil.FlushRedis(ctx, c.Client()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	const (
		rps   = 1
		burst = 5
	)
	var allowed, rejected int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.CheckIPRateLimit(ctx, "198.51.100.20", rps, burst)
			if err != nil {
				t.Errorf("CheckIPRateLimit: %v", err)
				return
			}
			if res.Allowed {
				atomic.AddInt64(&allowed, 1)
			} else {
				atomic.AddInt64(&rejected, 1)
			}
		}()
	}
	wg.Wait()

	// A fast burst can refill at most one extra token at 1 rps.
	if allowed < burst || allowed > burst+1 {
		t.Errorf("allowed = %d, want %d or %d", allowed, burst, burst+1)
	}
	if allowed+rejected != 20 {
		t.Errorf("accounted for %d requests, want 20", allowed+rejected)
	}
}
