package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/srrfarms/storefront-api/pkg/enums"
	"github.com/srrfarms/storefront-api/pkg/types"
)

// Order is the frozen result of a checkout. Items and amounts are never rewritten;
// only status, payment verification and tracking fields change afterwards.
type Order struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber       string              `gorm:"column:order_number;type:text;not null;uniqueIndex:idx_orders_order_number"`
	UserID            *uuid.UUID          `gorm:"column:user_id;type:uuid;index"`
	CustomerName      string              `gorm:"column:customer_name;not null"`
	CustomerEmail     string              `gorm:"column:customer_email;not null"`
	CustomerPhone     *string             `gorm:"column:customer_phone"`
	ShippingAddress   types.Address       `gorm:"column:shipping_address;type:jsonb;serializer:json;not null"`
	Subtotal          int64               `gorm:"column:subtotal;not null"`
	ShippingFee       int64               `gorm:"column:shipping_fee;not null"`
	Tax               int64               `gorm:"column:tax;not null"`
	Total             int64               `gorm:"column:total;not null"`
	PaymentMethod     enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus     enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	Status            enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending';index"`
	Notes             *string             `gorm:"column:notes"`
	UPITransactionID  *string             `gorm:"column:upi_transaction_id"`
	PaymentProofKey   *string             `gorm:"column:payment_proof_key"`
	TrackingNumber    *string             `gorm:"column:tracking_number"`
	EstimatedDelivery *time.Time          `gorm:"column:estimated_delivery"`
	DeliveredAt       *time.Time          `gorm:"column:delivered_at"`
	PaymentVerifiedAt *time.Time          `gorm:"column:payment_verified_at"`
	Items             []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
