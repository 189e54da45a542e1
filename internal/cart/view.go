package cart

import (
	"github.com/google/uuid"

	"github.com/srrfarms/storefront-api/pkg/db/models"
)

// CartItemView is one line of the cart as returned by the API.
type CartItemView struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	ImageURL  *string   `json:"image_url,omitempty"`
	Quantity  int       `json:"quantity"`
	UnitPrice int64     `json:"unit_price"`
	LineTotal int64     `json:"line_total"`
}

// CartView is the caller's cart. ID is absent until the first item is added.
type CartView struct {
	ID        *uuid.UUID     `json:"id,omitempty"`
	Items     []CartItemView `json:"items"`
	Subtotal  int64          `json:"subtotal"`
	ItemCount int            `json:"item_count"`
}

// EmptyView is returned for users without a cart.
func EmptyView() *CartView {
	return &CartView{Items: []CartItemView{}}
}

// NewView maps a cart with preloaded lines to its API shape.
func NewView(cart *models.Cart) *CartView {
	if cart == nil {
		return EmptyView()
	}
	id := cart.ID
	view := &CartView{ID: &id, Items: make([]CartItemView, 0, len(cart.Items))}
	for _, item := range cart.Items {
		line := CartItemView{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		}
		if item.Product != nil {
			line.Name = item.Product.Name
			line.ImageURL = item.Product.ImageURL
		}
		view.Items = append(view.Items, line)
		view.Subtotal += item.LineTotal
		view.ItemCount += item.Quantity
	}
	return view
}
