package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/srrfarms/storefront-api/pkg/types"
)

// User is the shopper or administrator identity referenced by carts and orders.
type User struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Name           string         `gorm:"column:name;not null"`
	Email          string         `gorm:"column:email;type:text;not null;uniqueIndex"`
	Phone          *string        `gorm:"column:phone"`
	IsAdmin        bool           `gorm:"column:is_admin;not null;default:false"`
	DefaultAddress *types.Address `gorm:"column:default_address;type:jsonb;serializer:json"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
