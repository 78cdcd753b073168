package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kursadbilgin/followupos/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

func TestRedisRateLimiterReserveWindow(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestRedisClient(t)

	now := time.Unix(1_700_000_000, 0)
	limiter, err := newRedisRateLimiter(rdb, 2, func() time.Time { return now }, sleepWithContext)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	want := []bool{true, true, false}
	for i, expected := range want {
		retryAfter, err := limiter.reserve(context.Background(), domain.ChannelSMS)
		if err != nil {
			t.Fatalf("reserve() call %d error = %v", i+1, err)
		}
		if allowed := retryAfter == 0; allowed != expected {
			t.Fatalf("reserve() call %d allowed = %v, want %v", i+1, allowed, expected)
		}
	}

	now = now.Add(time.Second)
	retryAfter, err := limiter.reserve(context.Background(), domain.ChannelSMS)
	if err != nil {
		t.Fatalf("reserve() error = %v", err)
	}
	if retryAfter != 0 {
		t.Fatalf("new second window should allow call, retry after %s", retryAfter)
	}
}

func TestRedisRateLimiterChannelsAreIndependent(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestRedisClient(t)

	now := time.Unix(1_700_000_100, 0)
	limiter, err := newRedisRateLimiter(rdb, 1, func() time.Time { return now }, sleepWithContext)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	for _, ch := range []domain.Channel{domain.ChannelSMS, domain.ChannelEmail} {
		retryAfter, err := limiter.reserve(context.Background(), ch)
		if err != nil {
			t.Fatalf("reserve(%s) error = %v", ch, err)
		}
		if retryAfter != 0 {
			t.Fatalf("%s should be allowed on first request", ch)
		}
	}

	retryAfter, err := limiter.reserve(context.Background(), domain.ChannelSMS)
	if err != nil {
		t.Fatalf("reserve(SMS) error = %v", err)
	}
	if retryAfter != time.Second {
		t.Fatalf("second SMS request retry after = %s, want 1s", retryAfter)
	}
}

func TestRedisRateLimiterRejectsUnknownChannel(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestRedisClient(t)
	limiter, err := NewRedisRateLimiter(rdb, 10)
	if err != nil {
		t.Fatalf("NewRedisRateLimiter() error = %v", err)
	}

	err = limiter.Wait(context.Background(), domain.Channel("PUSH"))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Wait() error = %v, want ErrValidation", err)
	}
}

func TestRedisRateLimiterWaitSleepsUntilNextWindow(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestRedisClient(t)

	now := time.Unix(1_700_000_200, 0).Add(300 * time.Millisecond)
	var slept []time.Duration
	limiter, err := newRedisRateLimiter(
		rdb,
		1,
		func() time.Time { return now },
		func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			now = now.Add(d)
			return nil
		},
	)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	if err := limiter.Wait(context.Background(), domain.ChannelEmail); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}
	if len(slept) != 0 {
		t.Fatalf("first Wait() slept %v, want no sleep", slept)
	}

	if err := limiter.Wait(context.Background(), domain.ChannelEmail); err != nil {
		t.Fatalf("second Wait() error = %v", err)
	}
	if len(slept) != 1 || slept[0] != 700*time.Millisecond {
		t.Fatalf("second Wait() slept %v, want [700ms]", slept)
	}
}

func TestRedisRateLimiterWaitContextDeadline(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestRedisClient(t)

	now := time.Unix(1_700_000_300, 0)
	limiter, err := newRedisRateLimiter(rdb, 1, func() time.Time { return now }, sleepWithContext)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	if err := limiter.Wait(context.Background(), domain.ChannelSMS); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	err = limiter.Wait(ctx, domain.ChannelSMS)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestNewRedisRateLimiterRequiresClient(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisRateLimiter(nil, 5); err == nil {
		t.Fatal("expected error for nil client")
	}
}

func newTestRedisClient(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	return rdb, mr
}
