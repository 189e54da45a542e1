package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/srrfarms/storefront-api/pkg/db/models"
	pkgerrors "github.com/srrfarms/storefront-api/pkg/errors"
	"github.com/srrfarms/storefront-api/pkg/logger"
	redisclient "github.com/srrfarms/storefront-api/pkg/redis"
)

const profileCacheNamespace = "profile"

type profileCache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CacheKey(parts ...string) string
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ProfileService serves user profiles through a read-through Redis cache.
// Concurrent misses for the same user share one database load.
type ProfileService struct {
	repo   userLoader
	cache  profileCache
	ttl    time.Duration
	logg   *logger.Logger
	flight singleflight.Group
}

// NewProfileService builds the profile service. cache may be nil, in which case
// every read goes to the database.
func NewProfileService(repo userLoader, cache profileCache, ttl time.Duration, logg *logger.Logger) (*ProfileService, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	return &ProfileService{repo: repo, cache: cache, ttl: ttl, logg: logg}, nil
}

// Get returns the profile for userID. A user that no longer exists is reported as
// UNAUTHORIZED because the caller's token points at nobody.
func (s *ProfileService) Get(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	if s.cache != nil {
		var cached UserDTO
		err := s.cache.GetJSON(ctx, s.key(userID), &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, redisclient.ErrCacheMiss) {
			s.warn(ctx, "users.profile_cache_read_failed", err)
		}
	}

	// The shared load must not inherit one caller's cancellation.
	flightCtx := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(userID.String(), func() (any, error) {
		return s.load(flightCtx, userID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		profile := *res.Val.(*UserDTO)
		return &profile, nil
	}
}

func (s *ProfileService) load(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user no longer exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load profile")
	}
	dto := FromModel(user)
	if s.cache != nil && s.ttl > 0 {
		if err := s.cache.SetJSON(ctx, s.key(userID), dto, s.ttl); err != nil {
			s.warn(ctx, "users.profile_cache_write_failed", err)
		}
	}
	return dto, nil
}

// Invalidate drops the cached profile so the next read goes to the database.
func (s *ProfileService) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Del(ctx, s.key(userID)); err != nil {
		return fmt.Errorf("invalidate profile: %w", err)
	}
	return nil
}

func (s *ProfileService) key(userID uuid.UUID) string {
	return s.cache.CacheKey(profileCacheNamespace, userID.String())
}

func (s *ProfileService) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}
