package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/followupos/internal/domain"
	"github.com/kursadbilgin/followupos/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultSendsPerSecond = 100
	rateWindow            = time.Second
	minRetryAfter         = 5 * time.Millisecond
)

// takeSlot counts one send against KEYS[1] and reports 1 while the window
// still has room. The key outlives its window by one period for late readers.
var takeSlot = goredis.NewScript(`
local used = redis.call("INCR", KEYS[1])
if used == 1 then
  redis.call("EXPIRE", KEYS[1], 2)
end
if used > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter caps provider sends per channel per second, shared by every
// worker process that talks to the same Redis.
type RedisRateLimiter struct {
	client *goredis.Client
	limit  int
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRedisRateLimiter(client *goredis.Client, sendsPerSecond int) (*RedisRateLimiter, error) {
	return newRedisRateLimiter(client, sendsPerSecond, time.Now, sleepWithContext)
}

func newRedisRateLimiter(
	client *goredis.Client,
	sendsPerSecond int,
	now func() time.Time,
	sleep func(ctx context.Context, d time.Duration) error,
) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if sendsPerSecond <= 0 {
		sendsPerSecond = defaultSendsPerSecond
	}

	return &RedisRateLimiter{
		client: client,
		limit:  sendsPerSecond,
		now:    now,
		sleep:  sleep,
	}, nil
}

// Wait blocks until a slot in the channel's window is taken or ctx is done.
// A full window sleeps until the next one opens instead of polling.
func (r *RedisRateLimiter) Wait(ctx context.Context, channel domain.Channel) error {
	for {
		retryAfter, err := r.reserve(ctx, channel)
		if err != nil {
			return err
		}
		if retryAfter == 0 {
			return nil
		}
		if err := r.sleep(ctx, retryAfter); err != nil {
			return err
		}
	}
}

// reserve returns zero when a slot was taken, otherwise the time until the
// current window closes.
func (r *RedisRateLimiter) reserve(ctx context.Context, channel domain.Channel) (time.Duration, error) {
	if !channel.IsValid() {
		return 0, fmt.Errorf("%w: invalid channel %q", domain.ErrValidation, channel)
	}

	now := r.now().UTC()
	windowStart := now.Truncate(rateWindow)
	key := fmt.Sprintf("ratelimit:%s:%d", channel, windowStart.Unix())

	ok, err := takeSlot.Run(ctx, r.client, []string{key}, r.limit).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to evaluate rate limit for %s: %w", channel, err)
	}
	if ok == 1 {
		return 0, nil
	}

	return max(windowStart.Add(rateWindow).Sub(now), minRetryAfter), nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
