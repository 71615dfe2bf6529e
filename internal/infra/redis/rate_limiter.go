package redis

import (
	"context"
	"time"
)

// RateLimiter is a fixed-window counter: the first hit in a window sets its expiry.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, rateKey(key))
	if err != nil {
		return false, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, rateKey(key), window)
		if err != nil {
			return false, err
		}
	}

	if count > int64(limit) {
		return false, nil
	}

	return true, nil
}

func rateKey(key string) string { return "rate_limit:" + key }

// PollKey scopes manual poll limits to a single job.
func PollKey(jobID string) string { return "poll:" + jobID }
