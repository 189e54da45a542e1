package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/srrfarms/storefront-api/pkg/db/models"
	"github.com/srrfarms/storefront-api/pkg/types"
)

// UserDTO is the profile returned by /api/auth/me and cached in Redis.
type UserDTO struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name"`
	Email          string         `json:"email"`
	Phone          *string        `json:"phone,omitempty"`
	IsAdmin        bool           `json:"is_admin"`
	DefaultAddress *types.Address `json:"default_address,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// FromModel maps a user row to its profile.
func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Phone:          u.Phone,
		IsAdmin:        u.IsAdmin,
		DefaultAddress: u.DefaultAddress,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}
