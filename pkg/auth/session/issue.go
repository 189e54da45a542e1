package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/srrfarms/storefront-api/pkg/auth"
	"github.com/srrfarms/storefront-api/pkg/config"
)

// Issue mints an access token for the user and opens the matching session.
func (m *Manager) Issue(ctx context.Context, cfg config.JWTConfig, now time.Time, userID uuid.UUID, isAdmin bool) (string, error) {
	accessID := NewAccessID()
	token, err := auth.MintAccessToken(cfg, now, auth.AccessTokenPayload{
		UserID:  userID,
		IsAdmin: isAdmin,
		JTI:     accessID,
	})
	if err != nil {
		return "", fmt.Errorf("mint access token: %w", err)
	}
	if err := m.Open(ctx, accessID, userID); err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	return token, nil
}
