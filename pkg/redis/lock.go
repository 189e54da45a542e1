package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another caller currently owns the lock.
var ErrLockHeld = errors.New("redis: lock held by another owner")

// releaseLockScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by someone else is never released by us.
var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// Locker runs fn while holding a named lock.
type Locker interface {
	WithLock(ctx context.Context, name string, ttl time.Duration, fn func(context.Context) error) error
}

// Lock is a held lock; Release must be called by the owner.
type Lock struct {
	client *Client
	key    string
	token  string
}

// AcquireLock takes the named lock with SET NX PX. It does not wait.
func (c *Client) AcquireLock(ctx context.Context, name string, ttl time.Duration) (*Lock, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("lock ttl must be positive")
	}
	key := c.LockKey(name)
	token := uuid.NewString()
	ok, err := c.SetNX(ctx, key, token, ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lock{client: c, key: key, token: token}, nil
}

// Release frees the lock if it is still owned by this holder. It reports
// whether the key was actually deleted.
func (l *Lock) Release(ctx context.Context) (bool, error) {
	if l == nil || l.client == nil || l.client.store == nil {
		return false, errors.New("redis client not initialized")
	}
	deleted, err := releaseLockScript.Run(ctx, l.client.store, []string{l.key}, l.token).Int()
	if err != nil {
		return false, fmt.Errorf("release lock: %w", err)
	}
	return deleted == 1, nil
}

// WithLock acquires name, runs fn, and releases the lock afterwards. A release
// failure is not reported; the TTL reclaims the key.
func (c *Client) WithLock(ctx context.Context, name string, ttl time.Duration, fn func(context.Context) error) error {
	lock, err := c.AcquireLock(ctx, name, ttl)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = lock.Release(context.WithoutCancel(ctx))
	}()
	return fn(ctx)
}
