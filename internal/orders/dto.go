package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/srrfarms/storefront-api/pkg/db/models"
	"github.com/srrfarms/storefront-api/pkg/enums"
	"github.com/srrfarms/storefront-api/pkg/pagination"
	"github.com/srrfarms/storefront-api/pkg/types"
)

// OrderItemDTO is a frozen order line.
type OrderItemDTO struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	ImageURL    *string   `json:"image_url,omitempty"`
	Quantity    int       `json:"quantity"`
	Price       int64     `json:"price"`
	LineTotal   int64     `json:"line_total"`
}

// OrderDTO is the full order representation returned to shoppers and admins.
type OrderDTO struct {
	ID                uuid.UUID           `json:"id"`
	OrderNumber       string              `json:"order_number"`
	UserID            *uuid.UUID          `json:"user_id,omitempty"`
	CustomerName      string              `json:"customer_name"`
	CustomerEmail     string              `json:"customer_email"`
	CustomerPhone     *string             `json:"customer_phone,omitempty"`
	ShippingAddress   types.Address       `json:"shipping_address"`
	Items             []OrderItemDTO      `json:"items"`
	Subtotal          int64               `json:"subtotal"`
	ShippingFee       int64               `json:"shipping_fee"`
	Tax               int64               `json:"tax"`
	Total             int64               `json:"total"`
	PaymentMethod     enums.PaymentMethod `json:"payment_method"`
	PaymentStatus     enums.PaymentStatus `json:"payment_status"`
	Status            enums.OrderStatus   `json:"status"`
	Notes             *string             `json:"notes,omitempty"`
	UPITransactionID  *string             `json:"upi_transaction_id,omitempty"`
	PaymentProofKey   *string             `json:"payment_proof_key,omitempty"`
	TrackingNumber    *string             `json:"tracking_number,omitempty"`
	EstimatedDelivery *time.Time          `json:"estimated_delivery,omitempty"`
	DeliveredAt       *time.Time          `json:"delivered_at,omitempty"`
	PaymentVerifiedAt *time.Time          `json:"payment_verified_at,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// AdminOrderList is one page of the admin order list.
type AdminOrderList struct {
	Orders     []OrderDTO      `json:"orders"`
	Pagination pagination.Meta `json:"pagination"`
}

// Stats summarises the order book for the admin dashboard.
type Stats struct {
	TotalOrders  int64                       `json:"total_orders"`
	StatusCounts map[enums.OrderStatus]int64 `json:"status_counts"`
	Revenue      int64                       `json:"revenue"`
	RecentOrders []OrderDTO                  `json:"recent_orders"`
}

// NewOrderDTO maps an order row, with items preloaded when present, to its API shape.
func NewOrderDTO(o models.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			ImageURL:    item.ImageURL,
			Quantity:    item.Quantity,
			Price:       item.Price,
			LineTotal:   item.LineTotal,
		})
	}
	return OrderDTO{
		ID:                o.ID,
		OrderNumber:       o.OrderNumber,
		UserID:            o.UserID,
		CustomerName:      o.CustomerName,
		CustomerEmail:     o.CustomerEmail,
		CustomerPhone:     o.CustomerPhone,
		ShippingAddress:   o.ShippingAddress,
		Items:             items,
		Subtotal:          o.Subtotal,
		ShippingFee:       o.ShippingFee,
		Tax:               o.Tax,
		Total:             o.Total,
		PaymentMethod:     o.PaymentMethod,
		PaymentStatus:     o.PaymentStatus,
		Status:            o.Status,
		Notes:             o.Notes,
		UPITransactionID:  o.UPITransactionID,
		PaymentProofKey:   o.PaymentProofKey,
		TrackingNumber:    o.TrackingNumber,
		EstimatedDelivery: o.EstimatedDelivery,
		DeliveredAt:       o.DeliveredAt,
		PaymentVerifiedAt: o.PaymentVerifiedAt,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func newOrderDTOs(rows []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewOrderDTO(row))
	}
	return out
}
