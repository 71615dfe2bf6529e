package repository

import (
	"context"
	"time"
)

// Locker guards a key so only one holder works on it at a time.
// TryLock returns domain.ErrJobLocked when the key is already held.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
