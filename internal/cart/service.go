package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/srrfarms/storefront-api/internal/products"
	"github.com/srrfarms/storefront-api/pkg/db/models"
	pkgerrors "github.com/srrfarms/storefront-api/pkg/errors"
	redisclient "github.com/srrfarms/storefront-api/pkg/redis"
)

const cartBusyMessage = "cart is being updated, please retry"

// MaxLineQuantity caps the quantity of a single cart line.
const MaxLineQuantity = 999

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the caller's cart lifecycle.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*CartView, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*CartView, error)
	UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, qty int) (*CartView, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*CartView, error)
	Clear(ctx context.Context, userID uuid.UUID) (*CartView, error)
}

type service struct {
	repo     *Repository
	products *products.Repository
	tx       txRunner
	locker   redisclient.Locker
	lockTTL  time.Duration
}

// NewService builds a cart service. locker may be nil when Redis is not configured.
func NewService(repo *Repository, productRepo *products.Repository, tx txRunner, locker redisclient.Locker, lockTTL time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:     repo,
		products: productRepo,
		tx:       tx,
		locker:   locker,
		lockTTL:  lockTTL,
	}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return EmptyView(), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load cart")
	}
	return NewView(cart), nil
}

func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*CartView, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if qty > MaxLineQuantity {
		return nil, lineCapExceeded()
	}
	return s.mutate(ctx, userID, true, func(ctx context.Context, repo *Repository, productRepo *products.Repository, cart *models.Cart) error {
		product, err := loadActiveProduct(ctx, productRepo, productID)
		if err != nil {
			return err
		}

		existing, err := repo.FindItem(ctx, cart.ID, productID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load cart line")
		}

		wanted := qty
		if existing != nil {
			if existing.Quantity > MaxLineQuantity-qty {
				return lineCapExceeded()
			}
			wanted += existing.Quantity
		}
		if wanted > product.Stock {
			return shortfall(product, wanted)
		}

		if existing != nil {
			if err := repo.SetItemQuantity(ctx, existing.ID, wanted, product.Price); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to update cart line")
			}
			return nil
		}
		item := &models.CartItem{
			CartID:    cart.ID,
			ProductID: product.ID,
			Quantity:  wanted,
			UnitPrice: product.Price,
			LineTotal: product.Price * int64(wanted),
		}
		if err := repo.CreateItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to add cart line")
		}
		return nil
	})
}

func (s *service) UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, qty int) (*CartView, error) {
	if qty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	if qty > MaxLineQuantity {
		return nil, lineCapExceeded()
	}
	return s.mutate(ctx, userID, true, func(ctx context.Context, repo *Repository, productRepo *products.Repository, cart *models.Cart) error {
		existing, err := repo.FindItem(ctx, cart.ID, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load cart line")
		}
		if qty == 0 {
			if _, err := repo.DeleteItem(ctx, cart.ID, productID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to remove cart line")
			}
			return nil
		}

		product, err := loadActiveProduct(ctx, productRepo, productID)
		if err != nil {
			return err
		}
		if qty > product.Stock {
			return shortfall(product, qty)
		}
		if err := repo.SetItemQuantity(ctx, existing.ID, qty, existing.UnitPrice); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to update cart line")
		}
		return nil
	})
}

func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*CartView, error) {
	return s.mutate(ctx, userID, false, func(ctx context.Context, repo *Repository, _ *products.Repository, cart *models.Cart) error {
		if _, err := repo.DeleteItem(ctx, cart.ID, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to remove cart line")
		}
		return nil
	})
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	return s.mutate(ctx, userID, false, func(ctx context.Context, repo *Repository, _ *products.Repository, cart *models.Cart) error {
		if err := repo.DeleteAllItems(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to clear cart")
		}
		return nil
	})
}

type mutation func(ctx context.Context, repo *Repository, productRepo *products.Repository, cart *models.Cart) error

// mutate runs fn under the user lock in one transaction, then recomputes the
// subtotal and returns the fresh view. Without create, a user with no cart gets
// the empty view and fn is skipped. With create, a cart made here is rolled back
// together with a failing fn.
func (s *service) mutate(ctx context.Context, userID uuid.UUID, create bool, fn mutation) (*CartView, error) {
	var view *CartView
	err := WithUserLock(ctx, s.locker, s.lockTTL, userID, cartBusyMessage, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			productRepo := s.products.WithTx(tx)

			var (
				cart *models.Cart
				err  error
			)
			if create {
				cart, err = repo.GetOrCreate(ctx, userID)
			} else {
				cart, err = repo.FindByUser(ctx, userID)
			}
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					view = EmptyView()
					return nil
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load cart")
			}

			if err := fn(ctx, repo, productRepo, cart); err != nil {
				return err
			}
			if _, err := repo.RecomputeSubtotal(ctx, cart.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to update cart subtotal")
			}
			fresh, err := repo.FindByUser(ctx, userID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to reload cart")
			}
			view = NewView(fresh)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func loadActiveProduct(ctx context.Context, repo *products.Repository, productID uuid.UUID) (*models.Product, error) {
	product, err := repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

func shortfall(product *models.Product, requested int) error {
	return pkgerrors.InsufficientStock(pkgerrors.StockShortfall{
		ProductID:   product.ID.String(),
		ProductName: product.Name,
		Requested:   requested,
		Available:   product.Stock,
	})
}

func lineCapExceeded() error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity per item cannot exceed %d", MaxLineQuantity))
}
