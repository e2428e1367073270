package utils

import (
	"context"
	"testing"
	"time"
)

func TestRedisConfigDefaults(t *testing.T) {
	cfg := RedisConfig{}.withDefaults()

	if cfg.DialTimeout != 3*time.Second {
		t.Fatalf("dial timeout = %v", cfg.DialTimeout)
	}
	if cfg.PoolSize != 20 {
		t.Fatalf("pool size = %d", cfg.PoolSize)
	}
	if cfg.PingTimeout != 2*time.Second {
		t.Fatalf("ping timeout = %v", cfg.PingTimeout)
	}

	// Explicit values survive.
	custom := RedisConfig{PoolSize: 5, DialTimeout: time.Second}.withDefaults()
	if custom.PoolSize != 5 || custom.DialTimeout != time.Second {
		t.Fatalf("explicit values overwritten: %+v", custom)
	}
}

func TestOpenRedisRequiresAddr(t *testing.T) {
	if _, err := OpenRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected error for missing addr")
	}
}
