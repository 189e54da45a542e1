package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/srrfarms/storefront-api/internal/cart"
	"github.com/srrfarms/storefront-api/internal/orders"
	"github.com/srrfarms/storefront-api/internal/products"
	"github.com/srrfarms/storefront-api/internal/users"
	pkgcheckout "github.com/srrfarms/storefront-api/pkg/checkout"
	"github.com/srrfarms/storefront-api/pkg/db/models"
	"github.com/srrfarms/storefront-api/pkg/enums"
	pkgerrors "github.com/srrfarms/storefront-api/pkg/errors"
	"github.com/srrfarms/storefront-api/pkg/logger"
	"github.com/srrfarms/storefront-api/pkg/metrics"
	redisclient "github.com/srrfarms/storefront-api/pkg/redis"
	"github.com/srrfarms/storefront-api/pkg/types"
)

const (
	checkoutBusyMessage   = "checkout already in progress"
	orderNumberSavepoint  = "order_number"
	defaultNumberAttempts = 3
	outcomePlaced         = "placed"
	outcomeRejected       = "rejected"
	outcomeFailed         = "failed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StockDecrementer applies the conditional stock decrement inside the checkout transaction.
type StockDecrementer interface {
	DecrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (bool, error)
}

// Service places orders from the caller's cart.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*orders.OrderDTO, error)
}

// PlaceOrderInput is a checkout request. ShippingAddress falls back to the user's
// default address when nil.
type PlaceOrderInput struct {
	UserID          uuid.UUID
	ShippingAddress *types.Address
	PaymentMethod   string
	Notes           string
	TransactionID   *string
	PaymentProofKey *string
}

// Config carries the pricing and concurrency knobs of checkout.
type Config struct {
	Pricing             pkgcheckout.Pricing
	LockTTL             time.Duration
	OrderNumberAttempts int
}

// Deps groups the collaborators of the checkout service.
type Deps struct {
	Tx       txRunner
	Users    *users.Repository
	Carts    *cart.Repository
	Products *products.Repository
	Orders   *orders.Repository
	Locker   redisclient.Locker
	Metrics  *metrics.CheckoutMetrics
	Logger   *logger.Logger
}

type service struct {
	cfg      Config
	tx       txRunner
	users    *users.Repository
	carts    *cart.Repository
	products *products.Repository
	stock    StockDecrementer
	orders   *orders.Repository
	locker   redisclient.Locker
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
	numbers  pkgcheckout.OrderNumberFunc
	now      func() time.Time
}

// Option customises the checkout service.
type Option func(*service)

// WithOrderNumbers overrides order number generation.
func WithOrderNumbers(fn pkgcheckout.OrderNumberFunc) Option {
	return func(s *service) {
		if fn != nil {
			s.numbers = fn
		}
	}
}

// WithStockDecrementer overrides the stock decrement, which otherwise goes to the product repository.
func WithStockDecrementer(stock StockDecrementer) Option {
	return func(s *service) {
		if stock != nil {
			s.stock = stock
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService builds the checkout service.
func NewService(cfg Config, deps Deps, opts ...Option) (Service, error) {
	switch {
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Users == nil:
		return nil, fmt.Errorf("user repository required")
	case deps.Carts == nil:
		return nil, fmt.Errorf("cart repository required")
	case deps.Products == nil:
		return nil, fmt.Errorf("product repository required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	}
	if cfg.OrderNumberAttempts <= 0 {
		cfg.OrderNumberAttempts = defaultNumberAttempts
	}
	s := &service{
		cfg:      cfg,
		tx:       deps.Tx,
		users:    deps.Users,
		carts:    deps.Carts,
		products: deps.Products,
		stock:    deps.Products,
		orders:   deps.Orders,
		locker:   deps.Locker,
		metrics:  deps.Metrics,
		logg:     deps.Logger,
		numbers:  pkgcheckout.NewOrderNumber,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*orders.OrderDTO, error) {
	started := s.now()
	method, err := enums.ParsePaymentMethod(input.PaymentMethod)
	if err != nil {
		return nil, s.reject(started, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment method must be cod or upi"))
	}

	var placed *models.Order
	err = cart.WithUserLock(ctx, s.locker, s.cfg.LockTTL, input.UserID, checkoutBusyMessage, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			order, err := s.build(ctx, tx, input, method)
			if err != nil {
				return err
			}
			placed = order
			return nil
		})
	})
	if err != nil {
		return nil, s.reject(started, err)
	}

	s.metrics.IncPlaced(string(method))
	s.metrics.ObserveDuration(outcomePlaced, s.now().Sub(started))
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, placed.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"order_number":   placed.OrderNumber,
			"total":          placed.Total,
			"payment_method": string(method),
			"item_count":     len(placed.Items),
		})
		s.logg.Info(logCtx, "checkout.order_placed")
	}

	dto := orders.NewOrderDTO(*placed)
	return &dto, nil
}

// build runs every checkout step inside tx. Any error rolls the whole order back.
func (s *service) build(ctx context.Context, tx *gorm.DB, input PlaceOrderInput, method enums.PaymentMethod) (*models.Order, error) {
	userRepo := s.users.WithTx(tx)
	cartRepo := s.carts.WithTx(tx)
	productRepo := s.products.WithTx(tx)
	orderRepo := s.orders.WithTx(tx)

	user, err := userRepo.FindByID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user no longer exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load user")
	}

	address, err := resolveAddress(input.ShippingAddress, user.DefaultAddress)
	if err != nil {
		return nil, err
	}

	userCart, err := cartRepo.FindByUser(ctx, input.UserID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load cart")
	}
	if userCart == nil || len(userCart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}

	lines := make([]pkgcheckout.StockLine, 0, len(userCart.Items))
	productIDs := make([]uuid.UUID, 0, len(userCart.Items))
	for _, item := range userCart.Items {
		lines = append(lines, pkgcheckout.StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
		productIDs = append(productIDs, item.ProductID)
	}
	live, err := productRepo.FindByIDs(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load products")
	}
	snapshots := make(map[uuid.UUID]pkgcheckout.StockSnapshot, len(live))
	for id, product := range live {
		snapshots[id] = pkgcheckout.StockSnapshot{
			ProductID: id,
			Name:      product.Name,
			Stock:     product.Stock,
			Active:    product.IsActive,
		}
	}
	if err := pkgcheckout.ValidateStock(lines, snapshots); err != nil {
		return nil, err
	}

	lineTotals := make([]int64, 0, len(userCart.Items))
	items := make([]models.OrderItem, 0, len(userCart.Items))
	itemIDs := make([]uuid.UUID, 0, len(userCart.Items))
	for _, item := range userCart.Items {
		product := live[item.ProductID]
		lineTotal := item.UnitPrice * int64(item.Quantity)
		lineTotals = append(lineTotals, lineTotal)
		items = append(items, models.OrderItem{
			ProductID:   item.ProductID,
			ProductName: product.Name,
			ImageURL:    product.ImageURL,
			Quantity:    item.Quantity,
			Price:       item.UnitPrice,
			LineTotal:   lineTotal,
		})
		itemIDs = append(itemIDs, item.ID)
	}
	totals := pkgcheckout.ComputeTotals(lineTotals, s.cfg.Pricing)

	userID := user.ID
	order := &models.Order{
		UserID:           &userID,
		CustomerName:     user.Name,
		CustomerEmail:    user.Email,
		CustomerPhone:    firstNonEmpty(user.Phone, address.Phone),
		ShippingAddress:  address,
		Subtotal:         totals.Subtotal,
		ShippingFee:      totals.ShippingFee,
		Tax:              totals.Tax,
		Total:            totals.Total,
		PaymentMethod:    method,
		PaymentStatus:    enums.PaymentStatusPending,
		Status:           enums.OrderStatusPending,
		Notes:            optionalText(input.Notes),
		UPITransactionID: trimmedPtr(input.TransactionID),
		PaymentProofKey:  trimmedPtr(input.PaymentProofKey),
		Items:            items,
	}
	if err := s.insertOrder(ctx, tx, orderRepo, order); err != nil {
		return nil, err
	}

	productOrder, quantities := pkgcheckout.AggregateQuantities(lines)
	for _, productID := range productOrder {
		qty := quantities[productID]
		applied, err := s.stock.DecrementStock(ctx, tx, productID, qty)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to update stock")
		}
		if !applied {
			s.metrics.IncStockRaceLost()
			return nil, s.lostRace(ctx, productRepo, productID, live[productID].Name, qty)
		}
	}

	if err := cartRepo.DeleteItems(ctx, userCart.ID, itemIDs); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to clear cart")
	}
	if _, err := cartRepo.RecomputeSubtotal(ctx, userCart.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to clear cart")
	}

	stored, err := orderRepo.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to reload order")
	}
	return stored, nil
}

// insertOrder writes the order under a fresh number, retrying under a savepoint
// when the number collides with an existing order.
func (s *service) insertOrder(ctx context.Context, tx *gorm.DB, repo *orders.Repository, order *models.Order) error {
	for attempt := 1; ; attempt++ {
		number, err := s.numbers(s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to generate order number")
		}
		order.OrderNumber = number

		if err := tx.SavePoint(orderNumberSavepoint).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create savepoint")
		}
		err = repo.Create(ctx, order)
		if err == nil {
			return nil
		}
		if rbErr := tx.RollbackTo(orderNumberSavepoint).Error; rbErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, rbErr, "failed to roll back order insert")
		}
		if !orders.IsOrderNumberConflict(err) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create order")
		}
		if attempt >= s.cfg.OrderNumberAttempts {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "could not allocate an order number, please retry")
		}
		s.metrics.IncOrderNumberRetry()
		resetIDs(order)
	}
}

// lostRace reports the product whose conditional decrement matched no row.
func (s *service) lostRace(ctx context.Context, repo *products.Repository, productID uuid.UUID, name string, requested int) error {
	available := 0
	if current, err := repo.FindByID(ctx, productID); err == nil {
		available = current.Stock
		name = current.Name
	}
	return pkgerrors.InsufficientStock(pkgerrors.StockShortfall{
		ProductID:   productID.String(),
		ProductName: name,
		Requested:   requested,
		Available:   available,
	})
}

func (s *service) reject(started time.Time, err error) error {
	outcome := outcomeRejected
	code := pkgerrors.CodeInternal
	if typed := pkgerrors.As(err); typed != nil {
		code = typed.Code()
	}
	if pkgerrors.MetadataFor(code).HTTPStatus >= 500 {
		outcome = outcomeFailed
	}
	s.metrics.IncRejected(string(code))
	s.metrics.ObserveDuration(outcome, s.now().Sub(started))
	return err
}

func resolveAddress(override, fallback *types.Address) (types.Address, error) {
	chosen := override
	if chosen == nil {
		chosen = fallback
	}
	if chosen == nil {
		return types.Address{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}
	if err := chosen.Validate(); err != nil {
		return types.Address{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}
	return chosen.Normalize(), nil
}

func resetIDs(order *models.Order) {
	order.ID = uuid.Nil
	for i := range order.Items {
		order.Items[i].ID = uuid.Nil
		order.Items[i].OrderID = uuid.Nil
	}
}

func firstNonEmpty(values ...*string) *string {
	for _, v := range values {
		if p := trimmedPtr(v); p != nil {
			return p
		}
	}
	return nil
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	return optionalText(*value)
}

func optionalText(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
