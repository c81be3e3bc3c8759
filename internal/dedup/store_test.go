package dedup

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreReserveOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ok, err := s.Reserve(ctx, "live//api/login", time.Minute)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if !ok {
		t.Fatalf("first reservation must succeed")
	}

	ok, err = s.Reserve(ctx, "live//api/login", time.Minute)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if ok {
		t.Fatalf("second reservation inside the TTL must fail")
	}
}

func TestMemoryStoreKeysIndependent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if ok, _ := s.Reserve(ctx, "live//a", time.Minute); !ok {
		t.Fatalf("key a must reserve")
	}
	if ok, _ := s.Reserve(ctx, "simulation//a", time.Minute); !ok {
		t.Fatalf("a different domain prefix is a different key")
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := s.Reserve(ctx, "k", time.Minute); !ok {
		t.Fatalf("first reservation must succeed")
	}
	now = now.Add(30 * time.Second)
	if ok, _ := s.Reserve(ctx, "k", time.Minute); ok {
		t.Fatalf("reservation must hold before expiry")
	}
	now = now.Add(31 * time.Second)
	if ok, _ := s.Reserve(ctx, "k", time.Minute); !ok {
		t.Fatalf("expired reservation must be reclaimable")
	}
}

func TestMemoryStoreZeroTTLNeverExpires(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := s.Reserve(ctx, "k", 0); !ok {
		t.Fatalf("reservation must succeed")
	}
	now = now.Add(24 * time.Hour)
	if ok, _ := s.Reserve(ctx, "k", 0); ok {
		t.Fatalf("zero TTL reservations must not expire")
	}
}

func TestMemoryStoreCloseReleases(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Reserve(ctx, "k", time.Minute)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if ok, _ := s.Reserve(ctx, "k", time.Minute); !ok {
		t.Fatalf("close must release reservations")
	}
}
