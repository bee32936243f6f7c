package idempotency

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type fakeStore struct {
	values     map[string]string
	setNXError error
	lastKey    string
	lastTTL    time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}}
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.lastKey = key
	f.lastTTL = ttl
	if f.setNXError != nil {
		return false, f.setNXError
	}
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = fmt.Sprint(value)
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "tix:idempotency:" + scope + ":" + id
}

func (f *fakeStore) CompareAndDelete(_ context.Context, key, value string) (bool, error) {
	if f.values[key] != value {
		return false, nil
	}
	delete(f.values, key)
	return true, nil
}

func TestCheckAndMarkProcessedClaimsOnce(t *testing.T) {
	store := newFakeStore()
	manager, err := NewManager(store, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	already, err := manager.CheckAndMarkProcessed(context.Background(), "inventory-change-feed", "evt-42")
	if err != nil || already {
		t.Fatalf("expected first claim, already=%v err=%v", already, err)
	}
	if store.lastKey != "tix:idempotency:evt:processed:inventory-change-feed:evt-42" {
		t.Fatalf("unexpected key: %q", store.lastKey)
	}
	if store.lastTTL != 24*time.Hour {
		t.Fatalf("unexpected ttl: %v", store.lastTTL)
	}
	if store.values[store.lastKey] != manager.owner {
		t.Fatalf("expected mark to hold the owner id, got %q", store.values[store.lastKey])
	}

	already, err = manager.CheckAndMarkProcessed(context.Background(), "inventory-change-feed", " evt-42 ")
	if err != nil || !already {
		t.Fatalf("expected redelivery to be seen, already=%v err=%v", already, err)
	}
}

func TestCheckAndMarkProcessedErrors(t *testing.T) {
	store := newFakeStore()
	store.setNXError = errors.New("boom")
	manager, err := NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "inventory-change-feed", "evt-1"); err == nil {
		t.Fatal("expected store error")
	}
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "inventory-change-feed", "  "); err == nil {
		t.Fatal("expected blank event id to be rejected")
	}
	if _, err := manager.CheckAndMarkProcessed(context.Background(), " ", "evt-1"); err == nil {
		t.Fatal("expected missing consumer to be rejected")
	}
}

func TestReleaseOnlyDropsOwnClaim(t *testing.T) {
	store := newFakeStore()
	mine, _ := NewManager(store, time.Hour)
	other, _ := NewManager(store, time.Hour)
	other.owner = "worker-b"
	ctx := context.Background()
	key := "tix:idempotency:evt:processed:inventory-change-feed:evt-7"

	if _, err := other.CheckAndMarkProcessed(ctx, "inventory-change-feed", "evt-7"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := mine.Release(ctx, "inventory-change-feed", "evt-7"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, ok := store.values[key]; !ok {
		t.Fatalf("foreign claim must survive release")
	}

	if err := other.Release(ctx, "inventory-change-feed", "evt-7"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, ok := store.values[key]; ok {
		t.Fatalf("own claim should be released")
	}
}

func TestNewManagerValidates(t *testing.T) {
	if _, err := NewManager(nil, time.Hour); err == nil {
		t.Fatal("expected nil store to be rejected")
	}
	if _, err := NewManager(newFakeStore(), -time.Second); err == nil {
		t.Fatal("expected negative ttl to be rejected")
	}
}
