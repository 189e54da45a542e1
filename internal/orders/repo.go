package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/srrfarms/storefront-api/pkg/db"
	"github.com/srrfarms/storefront-api/pkg/db/models"
	"github.com/srrfarms/storefront-api/pkg/enums"
	"github.com/srrfarms/storefront-api/pkg/pagination"
)

// orderNumberConstraints covers the Postgres index name and the SQLite column reference.
var orderNumberConstraints = []string{"idx_orders_order_number", "orders.order_number"}

// AdminFilter narrows the admin order list.
type AdminFilter struct {
	Status *enums.OrderStatus
	Search string
	From   *time.Time
	// Until is exclusive.
	Until *time.Time
}

// Repository persists orders and their frozen lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts the order together with its items.
func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// IsOrderNumberConflict reports whether err came from a duplicate order number.
func IsOrderNumberConflict(err error) bool {
	for _, name := range orderNumberConstraints {
		if db.IsUniqueViolation(err, name) {
			return true
		}
	}
	return false
}

func withItems(tx *gorm.DB) *gorm.DB {
	return tx.Preload("Items", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("created_at ASC").Order("id ASC")
	})
}

// FindByID loads an order with its items.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := withItems(r.db.WithContext(ctx)).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByUser returns the user's orders, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	err := withItems(r.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list user orders: %w", err)
	}
	return rows, nil
}

// AdminList returns one page of orders matching filter, newest first, plus the total.
func (r *Repository) AdminList(ctx context.Context, params pagination.Params, filter AdminFilter) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.Until != nil {
		query = query.Where("created_at < ?", *filter.Until)
	}
	if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
		pattern := db.ContainsPattern(term)
		like := " LIKE ? " + db.LikeEscape
		query = query.Where(
			"(LOWER(order_number)"+like+
				" OR LOWER(customer_name)"+like+
				" OR LOWER(customer_email)"+like+
				" OR LOWER(COALESCE(customer_phone, ''))"+like+")",
			pattern, pattern, pattern, pattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	params = params.Normalize()
	var rows []models.Order
	if err := withItems(query).
		Order("created_at DESC").
		Order("id DESC").
		Offset(params.Offset()).
		Limit(params.Limit).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return rows, total, nil
}

// FindForUpdate loads an order row and locks it for the rest of the transaction.
func (r *Repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	query := r.db.WithContext(ctx)
	if query.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := query.First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// Update applies column updates to an order header. Items and amounts are never passed here.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
}

type statusCount struct {
	Status enums.OrderStatus
	Count  int64
}

// CountByStatus returns the number of orders per status. Absent statuses are omitted.
func (r *Repository) CountByStatus(ctx context.Context) (map[enums.OrderStatus]int64, error) {
	var rows []statusCount
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count orders by status: %w", err)
	}
	out := make(map[enums.OrderStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// SumTotals returns the sum of order totals across the given statuses.
func (r *Repository) SumTotals(ctx context.Context, statuses []enums.OrderStatus) (int64, error) {
	var sum int64
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status IN ?", statuses).
		Select("COALESCE(SUM(total), 0)").
		Scan(&sum).Error; err != nil {
		return 0, fmt.Errorf("sum order totals: %w", err)
	}
	return sum, nil
}

// Recent returns the newest orders without items.
func (r *Repository) Recent(ctx context.Context, limit int) ([]models.Order, error) {
	var rows []models.Order
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("recent orders: %w", err)
	}
	return rows, nil
}
