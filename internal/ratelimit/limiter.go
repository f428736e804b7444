package ratelimit

import "context"

// RateLimiter bounds outbound email throughput per transport bucket
// (for example "resend" or "smtp").
type RateLimiter interface {
	Allow(ctx context.Context, bucket string) (bool, error)
	Wait(ctx context.Context, bucket string) error
}
