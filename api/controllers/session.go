package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/srrfarms/storefront-api/api/middleware"
	"github.com/srrfarms/storefront-api/api/responses"
	"github.com/srrfarms/storefront-api/internal/users"
	"github.com/srrfarms/storefront-api/pkg/auth/session"
	"github.com/srrfarms/storefront-api/pkg/errors"
	"github.com/srrfarms/storefront-api/pkg/logger"
)

type profileReader interface {
	Get(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error)
}

type profileInvalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// AuthLogout revokes the session of the presented token and drops the cached profile.
func AuthLogout(manager session.Revoker, profiles profileInvalidator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if manager == nil {
			responses.WriteError(r.Context(), logg, w, errors.New(errors.CodeInternal, "session manager unavailable"))
			return
		}

		accessID := middleware.AccessIDFromContext(r.Context())
		if accessID == "" {
			responses.WriteError(r.Context(), logg, w, errors.New(errors.CodeUnauthorized, "missing session id"))
			return
		}

		if err := manager.Revoke(r.Context(), accessID); err != nil {
			responses.WriteError(r.Context(), logg, w, errors.Wrap(errors.CodeDependency, err, "revoke session"))
			return
		}

		if profiles != nil {
			if userID, ok := middleware.UserUUIDFromContext(r.Context()); ok {
				if err := profiles.Invalidate(r.Context(), userID); err != nil && logg != nil {
					logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "auth.logout.profile_invalidate_failed")
				}
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

// AuthMe returns the caller's profile.
func AuthMe(profiles profileReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if profiles == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("profile"))
			return
		}
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profile, err := profiles.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}
