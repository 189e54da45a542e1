package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/srrfarms/storefront-api/pkg/db/dbtest"
	"github.com/srrfarms/storefront-api/pkg/db/models"
	"github.com/srrfarms/storefront-api/pkg/enums"
	pkgerrors "github.com/srrfarms/storefront-api/pkg/errors"
)

type orderFixture struct {
	conn *gorm.DB
	svc  Service
	now  time.Time
	seq  int
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	client := dbtest.Open(t)
	f := &orderFixture{conn: client.DB(), now: time.Now().Truncate(time.Second)}
	svc, err := NewService(NewRepository(client.DB()), client, WithClock(func() time.Time { return f.now }))
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *orderFixture) seedOrder(t *testing.T, user *models.User, status enums.OrderStatus, total int64, createdAt time.Time) *models.Order {
	t.Helper()
	f.seq++
	var userID *uuid.UUID
	name, email := "Guest Buyer", "guest@example.com"
	if user != nil {
		userID = &user.ID
		name, email = user.Name, user.Email
	}
	order := &models.Order{
		OrderNumber:     fmt.Sprintf("SRR-%d-TEST%d", createdAt.UnixMilli(), f.seq),
		UserID:          userID,
		CustomerName:    name,
		CustomerEmail:   email,
		ShippingAddress: *dbtest.DefaultAddress(),
		Subtotal:        total - 50,
		ShippingFee:     50,
		Total:           total,
		PaymentMethod:   enums.PaymentMethodCOD,
		PaymentStatus:   enums.PaymentStatusPending,
		Status:          status,
		Items: []models.OrderItem{{
			ProductID:   uuid.New(),
			ProductName: "Mango",
			Quantity:    1,
			Price:       total - 50,
			LineTotal:   total - 50,
		}},
		CreatedAt: createdAt,
	}
	require.NoError(t, f.conn.Create(order).Error)
	return order
}

func TestListForUserNewestFirst(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	user := dbtest.MustCreateUser(t, f.conn, false)
	other := dbtest.MustCreateUser(t, f.conn, false)

	older := f.seedOrder(t, user, enums.OrderStatusPending, 150, f.now.Add(-2*time.Hour))
	newer := f.seedOrder(t, user, enums.OrderStatusPending, 250, f.now.Add(-time.Hour))
	f.seedOrder(t, other, enums.OrderStatusPending, 350, f.now)

	list, err := f.svc.ListForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
	require.Len(t, list[0].Items, 1)
}

func TestGetForUserHidesOtherUsersOrders(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	owner := dbtest.MustCreateUser(t, f.conn, false)
	stranger := dbtest.MustCreateUser(t, f.conn, false)
	order := f.seedOrder(t, owner, enums.OrderStatusPending, 100, f.now)

	got, err := f.svc.GetForUser(ctx, owner.ID, order.ID, false)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, got.OrderNumber)

	_, err = f.svc.GetForUser(ctx, stranger.ID, order.ID, false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.GetForUser(ctx, stranger.ID, order.ID, true)
	assert.NoError(t, err)

	_, err = f.svc.GetForUser(ctx, owner.ID, uuid.New(), false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateStatusStampsDelivery(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, nil, enums.OrderStatusPending, 1100, f.now)

	tracking := " TRK123 "
	shipped, err := f.svc.UpdateStatus(ctx, order.ID, UpdateStatusInput{Status: "shipped", TrackingNumber: &tracking})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, shipped.Status)
	assert.Nil(t, shipped.DeliveredAt)
	require.NotNil(t, shipped.TrackingNumber)
	assert.Equal(t, "TRK123", *shipped.TrackingNumber)

	delivered, err := f.svc.UpdateStatus(ctx, order.ID, UpdateStatusInput{Status: "DELIVERED"})
	require.NoError(t, err)
	require.NotNil(t, delivered.DeliveredAt)
	assert.True(t, delivered.DeliveredAt.Equal(f.now))
	assert.Equal(t, int64(1100), delivered.Total)
	require.Len(t, delivered.Items, 1)

	reverted, err := f.svc.UpdateStatus(ctx, order.ID, UpdateStatusInput{Status: "cancelled"})
	require.NoError(t, err)
	assert.Nil(t, reverted.DeliveredAt)
}

func TestUpdateStatusRejectsUnknownStatusAndMissingOrder(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, nil, enums.OrderStatusPending, 500, f.now)

	_, err := f.svc.UpdateStatus(ctx, order.ID, UpdateStatusInput{Status: "lost"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidStatus))

	var stored models.Order
	require.NoError(t, f.conn.First(&stored, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)

	_, err = f.svc.UpdateStatus(ctx, uuid.New(), UpdateStatusInput{Status: "shipped"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestVerifyPaymentConfirmsPendingOrder(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, nil, enums.OrderStatusPending, 300, f.now)

	_, err := f.svc.VerifyPayment(ctx, order.ID, "pending")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	verified, err := f.svc.VerifyPayment(ctx, order.ID, "paid")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, verified.PaymentStatus)
	assert.Equal(t, enums.OrderStatusConfirmed, verified.Status)
	require.NotNil(t, verified.PaymentVerifiedAt)

	shipped := f.seedOrder(t, nil, enums.OrderStatusShipped, 300, f.now)
	failed, err := f.svc.VerifyPayment(ctx, shipped.ID, "failed")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusFailed, failed.PaymentStatus)
	assert.Equal(t, enums.OrderStatusShipped, failed.Status)
}

func TestAdminListFiltersAndPaginates(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	user := dbtest.MustCreateUser(t, f.conn, false)
	require.NoError(t, f.conn.Model(user).Update("name", "Ravi Kumar").Error)
	user.Name = "Ravi Kumar"

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.Local)
	f.seedOrder(t, user, enums.OrderStatusPending, 100, day.Add(9*time.Hour))
	f.seedOrder(t, user, enums.OrderStatusShipped, 200, day.Add(23*time.Hour+30*time.Minute))
	f.seedOrder(t, nil, enums.OrderStatusPending, 300, day.AddDate(0, 0, 1).Add(time.Hour))

	all, err := f.svc.AdminList(ctx, AdminListInput{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, all.Pagination.Total)
	assert.Equal(t, 2, all.Pagination.TotalPages)
	assert.True(t, all.Pagination.HasNext)
	require.Len(t, all.Orders, 2)
	assert.Equal(t, int64(300), all.Orders[0].Total)

	sameDay, err := f.svc.AdminList(ctx, AdminListInput{StartDate: "2026-03-10", EndDate: "2026-03-10"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, sameDay.Pagination.Total, "end date covers the whole day")

	pending, err := f.svc.AdminList(ctx, AdminListInput{Status: "pending"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, pending.Pagination.Total)

	everything, err := f.svc.AdminList(ctx, AdminListInput{Status: "all"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, everything.Pagination.Total)

	searched, err := f.svc.AdminList(ctx, AdminListInput{Search: "ravi"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, searched.Pagination.Total)

	byEmail, err := f.svc.AdminList(ctx, AdminListInput{Search: "GUEST@"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, byEmail.Pagination.Total)

	_, err = f.svc.AdminList(ctx, AdminListInput{Status: "teleported"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidStatus))

	_, err = f.svc.AdminList(ctx, AdminListInput{StartDate: "10/03/2026"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestStatsZeroFillsAndSumsRevenue(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	f.seedOrder(t, nil, enums.OrderStatusPending, 1000, f.now.Add(-5*time.Hour))
	f.seedOrder(t, nil, enums.OrderStatusConfirmed, 200, f.now.Add(-4*time.Hour))
	f.seedOrder(t, nil, enums.OrderStatusDelivered, 300, f.now.Add(-3*time.Hour))
	f.seedOrder(t, nil, enums.OrderStatusCancelled, 400, f.now.Add(-2*time.Hour))
	f.seedOrder(t, nil, enums.OrderStatusShipped, 500, f.now.Add(-time.Hour))
	f.seedOrder(t, nil, enums.OrderStatusShipped, 600, f.now)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 6, stats.TotalOrders)
	assert.EqualValues(t, 1600, stats.Revenue)
	assert.EqualValues(t, 2, stats.StatusCounts[enums.OrderStatusShipped])
	assert.Len(t, stats.StatusCounts, 5)
	require.Len(t, stats.RecentOrders, 5)
	assert.Equal(t, int64(600), stats.RecentOrders[0].Total)
}

func TestStatsOnEmptyBook(t *testing.T) {
	f := newOrderFixture(t)
	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalOrders)
	assert.Zero(t, stats.Revenue)
	for _, status := range enums.OrderStatuses() {
		count, ok := stats.StatusCounts[status]
		assert.True(t, ok)
		assert.Zero(t, count)
	}
	assert.Empty(t, stats.RecentOrders)
}

func TestPersistenceFailureSurfacesAsInternalError(t *testing.T) {
	f := newOrderFixture(t)
	sqlDB, err := f.conn.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = f.svc.ListForUser(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal), "got %v", err)
	assert.Equal(t, 500, pkgerrors.MetadataFor(pkgerrors.As(err).Code()).HTTPStatus)
}
