package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"lisst-auth/internal/config"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	cfg := &config.Config{
		Redis: config.RedisConfig{
			URL:        "redis://" + mr.Addr(),
			PoolSize:   5,
			KeyBuckets: 16,
		},
	}
	store, err := NewRedisStore(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store, mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	if _, err := store.GetItem(ctx, "lisst_in_user"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.SetItem(ctx, "lisst_in_user", `{"phoneNumber":"9812345678"}`); err != nil {
		t.Fatalf("SetItem: %v", err)
	}

	value, err := store.GetItem(ctx, "lisst_in_user")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if value != `{"phoneNumber":"9812345678"}` {
		t.Fatalf("unexpected value %q", value)
	}

	if err := store.RemoveItem(ctx, "lisst_in_user"); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if _, err := store.GetItem(ctx, "lisst_in_user"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after removal, got %v", err)
	}
}

func TestRedisStoreRemoveIsIdempotent(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	if err := store.RemoveItem(ctx, "absent"); err != nil {
		t.Fatalf("RemoveItem on absent key: %v", err)
	}
}

func TestRedisStoreBucketsKeys(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	if err := store.SetItem(ctx, "lisst_in_user", "v"); err != nil {
		t.Fatalf("SetItem: %v", err)
	}

	keys := mr.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected one physical key, got %v", keys)
	}
	if !strings.HasPrefix(keys[0], "session:") || !strings.HasSuffix(keys[0], ":lisst_in_user") {
		t.Fatalf("physical key %q is not bucketed", keys[0])
	}

	// The same logical key must always map to the same physical key.
	if err := store.SetItem(ctx, "lisst_in_user", "v2"); err != nil {
		t.Fatalf("SetItem again: %v", err)
	}
	if again := mr.Keys(); len(again) != 1 {
		t.Fatalf("bucket mapping unstable: %v", again)
	}
}
