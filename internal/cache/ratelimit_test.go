package cache

import (
	"context"
	"strings"
	"testing"
)

func TestHashIP(t *testing.T) {
	t.Parallel()

	ips := []string{"192.168.1.1", "192.168.1.2", "127.0.0.1", "::1", "2001:db8::8a2e:370:7334", ""}
	seen := make(map[string]string, len(ips))

	for _, ip := range ips {
		h := hashIP(ip)
		if len(h) != 16 {
			t.Errorf("hashIP(%q) length = %d, want 16", ip, len(h))
		}
		if h != hashIP(ip) {
			t.Errorf("hashIP(%q) is not deterministic", ip)
		}
		if prev, ok := seen[h]; ok {
			t.Errorf("hashIP collision between %q and %q", prev, ip)
		}
		seen[h] = ip
	}
}

func TestIPBucketKey_DoesNotLeakAddress(t *testing.T) {
	t.Parallel()

	key := ipBucketKey("203.0.113.7")
	if !strings.HasPrefix(key, rateLimitIPPrefix) {
		t.Errorf("key %q missing prefix %q", key, rateLimitIPPrefix)
	}
	if strings.Contains(key, "203.0.113.7") {
		t.Errorf("key %q contains the raw IP", key)
	}
}

func TestCheckIPRateLimit_ZeroRateIsUnlimited(t *testing.T) {
	t.Parallel()

	// No client: a zero rate must short-circuit before Redis is touched.
	c := &Cache{}
	res, err := c.CheckIPRateLimit(context.Background(), "10.0.0.1", 0, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Allowed || res.Remaining != 5 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestClientOptions(t *testing.T) {
	t.Parallel()

	opt, err := clientOptions("redis://:secret@cache.internal:6380/3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opt.Addr != "cache.internal:6380" || opt.DB != 3 || opt.Password != "secret" {
		t.Errorf("parsed options = addr %q db %d password %q", opt.Addr, opt.DB, opt.Password)
	}
	if opt.PoolSize != poolSize || opt.MinIdleConns != minIdleConns {
		t.Errorf("pool = %d/%d, want %d/%d", opt.PoolSize, opt.MinIdleConns, poolSize, minIdleConns)
	}

	if _, err := clientOptions("http://not-redis"); err == nil {
		t.Error("expected error for non-redis scheme")
	}
}
