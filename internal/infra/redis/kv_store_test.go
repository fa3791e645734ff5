package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestKVStorePutGetDelete(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewKVStore(newClient(mr), time.Minute)

	if err := store.Put(ctx, "session:capitals", "sess-1"); err != nil {
		t.Fatalf("put: %v", err)
	}
	val, ok, err := store.Get(ctx, "session:capitals")
	if err != nil || !ok || val != "sess-1" {
		t.Fatalf("expected sess-1 back, got %q ok=%v err=%v", val, ok, err)
	}
	if ttl := mr.TTL("session:capitals"); ttl <= 0 {
		t.Fatalf("expected key to carry a TTL, got %v", ttl)
	}

	if err := store.Delete(ctx, "session:capitals"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "session:capitals"); ok {
		t.Fatalf("expected key removed")
	}
}

func TestKVStoreTakeConsumesOnce(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewKVStore(newClient(mr), time.Minute)

	if err := store.Put(ctx, "authRedirect:capitals", `{"quizSlug":"capitals"}`); err != nil {
		t.Fatalf("put: %v", err)
	}

	val, ok, err := store.Take(ctx, "authRedirect:capitals")
	if err != nil || !ok || val == "" {
		t.Fatalf("expected snapshot on first take, got %q ok=%v err=%v", val, ok, err)
	}
	if _, ok, err := store.Take(ctx, "authRedirect:capitals"); err != nil || ok {
		t.Fatalf("expected nothing on second take, ok=%v err=%v", ok, err)
	}
}

func TestKVStoreGetMissing(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewKVStore(newClient(mr), time.Minute)
	if _, ok, err := store.Get(context.Background(), "nope"); err != nil || ok {
		t.Fatalf("expected clean miss, ok=%v err=%v", ok, err)
	}
}
