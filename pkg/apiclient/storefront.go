package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Address mirrors the shipping address accepted by the API.
type Address struct {
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country,omitempty"`
	Phone      *string `json:"phone,omitempty"`
}

// CartItem is one line of the caller's cart.
type CartItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	ImageURL  *string `json:"image_url,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice int64   `json:"unit_price"`
	LineTotal int64   `json:"line_total"`
}

// Cart is the caller's cart view.
type Cart struct {
	ID        string     `json:"id,omitempty"`
	Items     []CartItem `json:"items"`
	Subtotal  int64      `json:"subtotal"`
	ItemCount int        `json:"item_count"`
}

// OrderItem is a frozen order line.
type OrderItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Price       int64  `json:"price"`
	LineTotal   int64  `json:"line_total"`
}

// Order is a placed order as returned by the API.
type Order struct {
	ID              string      `json:"id"`
	OrderNumber     string      `json:"order_number"`
	Items           []OrderItem `json:"items"`
	ShippingAddress Address     `json:"shipping_address"`
	Subtotal        int64       `json:"subtotal"`
	ShippingFee     int64       `json:"shipping_fee"`
	Tax             int64       `json:"tax"`
	Total           int64       `json:"total"`
	PaymentMethod   string      `json:"payment_method"`
	PaymentStatus   string      `json:"payment_status"`
	Status          string      `json:"status"`
	TrackingNumber  *string     `json:"tracking_number,omitempty"`
	DeliveredAt     *time.Time  `json:"delivered_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// PlaceOrderRequest is the checkout body.
type PlaceOrderRequest struct {
	ShippingAddress *Address `json:"shipping_address,omitempty"`
	PaymentMethod   string   `json:"payment_method"`
	Notes           string   `json:"notes,omitempty"`
}

// GetCart returns the caller's cart.
func (c *Client) GetCart(ctx context.Context) (*Cart, error) {
	var cart Cart
	if err := c.Do(ctx, http.MethodGet, "/api/cart", nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// AddToCart adds quantity units of productID to the cart.
func (c *Client) AddToCart(ctx context.Context, productID string, quantity int) (*Cart, error) {
	body := map[string]any{"product_id": productID, "quantity": quantity}
	var cart Cart
	if err := c.Do(ctx, http.MethodPost, "/api/cart/items", body, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// PlaceOrder checks out the current cart.
func (c *Client) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	var order Order
	if err := c.Do(ctx, http.MethodPost, "/api/orders", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders returns the caller's orders, newest first.
func (c *Client) ListOrders(ctx context.Context) ([]Order, error) {
	var orders []Order
	if err := c.Do(ctx, http.MethodGet, "/api/orders", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrder returns a single order owned by the caller.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	if err := c.Do(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(orderID), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Logout revokes the server session and clears the local one even when the
// server call fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.session.Clear()
	return c.Do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}
