package ratelimit

import (
	"context"

	"github.com/kursadbilgin/followupos/internal/domain"
)

// RateLimiter caps provider sends per channel.
type RateLimiter interface {
	Wait(ctx context.Context, channel domain.Channel) error
}

// Unlimited admits every send.
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context, _ domain.Channel) error { return ctx.Err() }
