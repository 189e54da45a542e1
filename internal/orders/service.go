package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/srrfarms/storefront-api/pkg/db/models"
	"github.com/srrfarms/storefront-api/pkg/enums"
	pkgerrors "github.com/srrfarms/storefront-api/pkg/errors"
	"github.com/srrfarms/storefront-api/pkg/pagination"
)

const (
	recentOrdersLimit = 5
	dateLayout        = "2006-01-02"
	statusFilterAll   = "all"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes order reads for shoppers and the admin order surface.
type Service interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error)
	GetForUser(ctx context.Context, userID, orderID uuid.UUID, isAdmin bool) (*OrderDTO, error)
	AdminList(ctx context.Context, input AdminListInput) (*AdminOrderList, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, input UpdateStatusInput) (*OrderDTO, error)
	VerifyPayment(ctx context.Context, orderID uuid.UUID, paymentStatus string) (*OrderDTO, error)
	Stats(ctx context.Context) (*Stats, error)
}

// AdminListInput carries the raw admin list query. Dates are YYYY-MM-DD or RFC3339;
// a date-only end covers that whole day.
type AdminListInput struct {
	Page      int
	Limit     int
	Status    string
	Search    string
	StartDate string
	EndDate   string
}

// UpdateStatusInput carries an admin status change.
type UpdateStatusInput struct {
	Status            string
	TrackingNumber    *string
	EstimatedDelivery *time.Time
}

type service struct {
	repo     *Repository
	tx       txRunner
	now      func() time.Time
	location *time.Location
}

// Option customises the service.
type Option func(*service)

// WithClock overrides the time source used for delivery and verification stamps.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone date-only filters are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(s *service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// NewService builds the order service.
func NewService(repo *Repository, tx txRunner, opts ...Option) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	s := &service{repo: repo, tx: tx, now: time.Now, location: time.Local}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list orders")
	}
	return newOrderDTOs(rows), nil
}

func (s *service) GetForUser(ctx context.Context, userID, orderID uuid.UUID, isAdmin bool) (*OrderDTO, error) {
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	// other users' orders are reported as missing rather than forbidden
	if !isAdmin && (order.UserID == nil || *order.UserID != userID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	dto := NewOrderDTO(*order)
	return &dto, nil
}

func (s *service) AdminList(ctx context.Context, input AdminListInput) (*AdminOrderList, error) {
	filter := AdminFilter{Search: input.Search}

	if raw := strings.ToLower(strings.TrimSpace(input.Status)); raw != "" && raw != statusFilterAll {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidStatus, err, "invalid order status")
		}
		filter.Status = &status
	}

	from, err := s.parseBound(input.StartDate, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid startDate")
	}
	until, err := s.parseBound(input.EndDate, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid endDate")
	}
	filter.From = from
	filter.Until = until

	params := pagination.Params{Page: input.Page, Limit: input.Limit}.Normalize()
	rows, total, err := s.repo.AdminList(ctx, params, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list orders")
	}
	return &AdminOrderList{
		Orders:     newOrderDTOs(rows),
		Pagination: pagination.NewMeta(params, total),
	}, nil
}

// parseBound turns a filter date into a time. For an end bound the result is
// exclusive: a date-only value moves to the start of the next day.
func (s *service) parseBound(raw string, end bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if day, err := time.ParseInLocation(dateLayout, raw, s.location); err == nil {
		if end {
			day = day.AddDate(0, 0, 1)
		}
		return &day, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	if end {
		ts = ts.Add(time.Nanosecond)
	}
	return &ts, nil
}

func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, input UpdateStatusInput) (*OrderDTO, error) {
	status, err := enums.ParseOrderStatus(strings.ToLower(strings.TrimSpace(input.Status)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidStatus, err, "invalid order status")
	}

	var updated *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.lockOrder(ctx, repo, orderID); err != nil {
			return err
		}

		updates := map[string]any{"status": status}
		if status == enums.OrderStatusDelivered {
			updates["delivered_at"] = s.now()
		} else {
			updates["delivered_at"] = nil
		}
		if input.TrackingNumber != nil {
			updates["tracking_number"] = strings.TrimSpace(*input.TrackingNumber)
		}
		if input.EstimatedDelivery != nil {
			updates["estimated_delivery"] = *input.EstimatedDelivery
		}
		if err := repo.Update(ctx, orderID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to update order status")
		}

		updated, err = s.load(ctx, repo, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	dto := NewOrderDTO(*updated)
	return &dto, nil
}

func (s *service) VerifyPayment(ctx context.Context, orderID uuid.UUID, paymentStatus string) (*OrderDTO, error) {
	status, err := enums.ParsePaymentStatus(strings.ToLower(strings.TrimSpace(paymentStatus)))
	if err != nil || status == enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment status must be paid or failed")
	}

	var updated *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lockOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}

		updates := map[string]any{
			"payment_status":      status,
			"payment_verified_at": s.now(),
		}
		if status == enums.PaymentStatusPaid && order.Status == enums.OrderStatusPending {
			updates["status"] = enums.OrderStatusConfirmed
		}
		if err := repo.Update(ctx, orderID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to update payment status")
		}

		updated, err = s.load(ctx, repo, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	dto := NewOrderDTO(*updated)
	return &dto, nil
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load order stats")
	}
	revenue, err := s.repo.SumTotals(ctx, enums.RevenueStatuses())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load order stats")
	}
	recent, err := s.repo.Recent(ctx, recentOrdersLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load order stats")
	}

	stats := &Stats{
		StatusCounts: make(map[enums.OrderStatus]int64, len(enums.OrderStatuses())),
		Revenue:      revenue,
		RecentOrders: newOrderDTOs(recent),
	}
	for _, status := range enums.OrderStatuses() {
		stats.StatusCounts[status] = counts[status]
		stats.TotalOrders += counts[status]
	}
	return stats, nil
}

func (s *service) load(ctx context.Context, repo *Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load order")
	}
	return order, nil
}

func (s *service) lockOrder(ctx context.Context, repo *Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load order")
	}
	return order, nil
}
