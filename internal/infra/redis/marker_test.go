package redis

import (
	"context"
	"testing"
	"time"
)

func TestReconcileMarker(t *testing.T) {
	t.Parallel()

	rdb, mr := newTestRedisClient(t)
	marker := NewReconcileMarker(rdb, 2*time.Minute)
	ctx := context.Background()
	id := "77777777-7777-7777-7777-777777777777"

	ok, err := marker.Mark(ctx, id)
	if err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	if !ok {
		t.Fatal("first Mark() should set the marker")
	}

	ok, err = marker.Mark(ctx, id)
	if err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	if ok {
		t.Fatal("second Mark() should see the existing marker")
	}

	if ttl := mr.TTL(reconcileKeyPrefix + id); ttl != 2*time.Minute {
		t.Fatalf("marker ttl = %s, want 2m", ttl)
	}

	mr.FastForward(3 * time.Minute)
	ok, err = marker.Mark(ctx, id)
	if err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	if !ok {
		t.Fatal("Mark() after expiry should set the marker again")
	}
}

func TestReconcileMarkerClear(t *testing.T) {
	t.Parallel()

	rdb, mr := newTestRedisClient(t)
	marker := NewReconcileMarker(rdb, time.Minute)
	ctx := context.Background()
	id := "77777777-7777-7777-7777-777777777777"

	if _, err := marker.Mark(ctx, id); err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	if err := marker.Clear(ctx, id); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if mr.Exists(reconcileKeyPrefix + id) {
		t.Fatal("marker should be removed")
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	rdb, mr := newTestRedisClient(t)
	if err := Ping(context.Background(), rdb); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	mr.Close()
	if err := Ping(context.Background(), rdb); err == nil {
		t.Fatal("Ping() should fail once redis is down")
	}
}
