// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/danielhkuo/fuelwatch/ingest"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		addr    string
		db      int
		wantErr bool
	}{
		{name: "url", url: "redis://localhost:6380/2", addr: "localhost:6380", db: 2},
		{name: "host port", url: "cache:6379", addr: "cache:6379"},
		{name: "bad url", url: "redis://localhost:6379/notadb", wantErr: true},
		{name: "empty", url: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := newClient(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("newClient() error = %v", err)
			}
			defer client.Close()
			opt := client.Options()
			if opt.Addr != tt.addr || opt.DB != tt.db {
				t.Errorf("Expected %s/%d, got %s/%d", tt.addr, tt.db, opt.Addr, opt.DB)
			}
		})
	}
}

func TestKeys(t *testing.T) {
	if got := RateLimitKey("u1", "st1"); got != "fuelwatch:ratelimit:u1:st1" {
		t.Errorf("Unexpected rate limit key %q", got)
	}
	if got := StatusKey("st1"); got != "fuelwatch:status:st1" {
		t.Errorf("Unexpected status key %q", got)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	// A disabled limit never reaches the client
	l := NewRedisRateLimiter(nil, ingest.RateLimit{})
	ok, err := l.Allow(context.Background(), "u1", "st1", time.Now())
	if err != nil || !ok {
		t.Errorf("Expected allow, got %v, %v", ok, err)
	}
	if err := l.Release(context.Background(), "u1", "st1", time.Now()); err != nil {
		t.Errorf("Expected no-op release, got %v", err)
	}
}

func TestSnapshotTTLDefault(t *testing.T) {
	if s := NewRedisSnapshots(nil, 0); s.ttl != DefaultSnapshotTTL {
		t.Errorf("Expected default TTL, got %v", s.ttl)
	}
	if s := NewRedisSnapshots(nil, time.Hour); s.ttl != time.Hour {
		t.Errorf("Expected 1h TTL, got %v", s.ttl)
	}
}
