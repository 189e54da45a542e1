package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/srrfarms/storefront-api/pkg/errors"
	redisclient "github.com/srrfarms/storefront-api/pkg/redis"
)

// DefaultLockTTL bounds how long a crashed holder can block the user's cart.
const DefaultLockTTL = 10 * time.Second

// LockName is the per-user lock shared by cart mutations and checkout, so a
// checkout never reads a cart that is half way through an edit.
func LockName(userID uuid.UUID) string {
	return "cart:" + userID.String()
}

// WithUserLock runs fn under the user's cart lock. A nil locker runs fn directly.
// A lock held elsewhere surfaces as CONFLICT carrying busyMessage.
func WithUserLock(ctx context.Context, locker redisclient.Locker, ttl time.Duration, userID uuid.UUID, busyMessage string, fn func(context.Context) error) error {
	if locker == nil {
		return fn(ctx)
	}
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	err := locker.WithLock(ctx, LockName(userID), ttl, fn)
	if errors.Is(err, redisclient.ErrLockHeld) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, busyMessage)
	}
	return err
}
