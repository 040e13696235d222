package rediskv

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	store := New(server.Addr())
	t.Cleanup(func() { store.Close() })
	return store, server
}

func TestStore(t *testing.T) {
	store, server := newTestStore(t)
	ctx := context.Background()

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	t.Run("Get of a missing key", func(t *testing.T) {
		val, ok, err := store.Get(ctx, "missing")
		if err != nil || ok || val != "" {
			t.Errorf("Get = %q, %v, %v; want \"\", false, nil", val, ok, err)
		}
	})

	t.Run("Set overwrites", func(t *testing.T) {
		if err := store.Set(ctx, "k", "v1"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := store.Set(ctx, "k", "v2"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		val, ok, err := store.Get(ctx, "k")
		if err != nil || !ok || val != "v2" {
			t.Errorf("Get = %q, %v, %v; want v2, true, nil", val, ok, err)
		}
	})

	t.Run("Set keeps keys without expiry", func(t *testing.T) {
		if err := store.Set(ctx, "durable", "yes"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if ttl := server.TTL("durable"); ttl != 0 {
			t.Errorf("TTL = %v, want none", ttl)
		}
	})

	t.Run("MultiRemove ignores missing keys", func(t *testing.T) {
		if err := store.Set(ctx, "other", "x"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := store.MultiRemove(ctx, "k", "missing", "other"); err != nil {
			t.Fatalf("MultiRemove failed: %v", err)
		}
		for _, key := range []string{"k", "other"} {
			if _, ok, _ := store.Get(ctx, key); ok {
				t.Errorf("Expected %s to be removed", key)
			}
		}
		if _, ok, _ := store.Get(ctx, "durable"); !ok {
			t.Error("Expected unrelated key to survive")
		}
	})

	t.Run("Errors when the server is gone", func(t *testing.T) {
		server.Close()
		if _, _, err := store.Get(ctx, "durable"); err == nil {
			t.Error("Expected an error from a closed server")
		}
		if err := store.Set(ctx, "k", "v"); err == nil {
			t.Error("Expected an error from a closed server")
		}
	})
}
