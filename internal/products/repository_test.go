package products

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srrfarms/storefront-api/pkg/db/dbtest"
	"github.com/srrfarms/storefront-api/pkg/db/models"
	"github.com/srrfarms/storefront-api/pkg/pagination"
)

func TestDecrementStockGuardsAvailableQuantity(t *testing.T) {
	client := dbtest.Open(t)
	conn := client.DB()
	repo := NewRepository(conn)
	ctx := context.Background()

	product := dbtest.MustCreateProduct(t, conn, "Banganapalli Mango 1kg", 180, 3)

	applied, err := repo.DecrementStock(ctx, conn, product.ID, 2)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.DecrementStock(ctx, conn, product.ID, 2)
	require.NoError(t, err)
	assert.False(t, applied, "only one unit is left")

	applied, err = repo.DecrementStock(ctx, conn, product.ID, 1)
	require.NoError(t, err)
	assert.True(t, applied)

	reloaded, err := repo.FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.Stock)

	_, err = repo.DecrementStock(ctx, conn, product.ID, 0)
	assert.Error(t, err)
}

func TestListFiltersInactiveAndSearches(t *testing.T) {
	client := dbtest.Open(t)
	conn := client.DB()
	repo := NewRepository(conn)
	ctx := context.Background()

	dbtest.MustCreateProduct(t, conn, "Alphonso Mango", 250, 10)
	dbtest.MustCreateProduct(t, conn, "Guava", 60, 10)
	hidden := dbtest.MustCreateProduct(t, conn, "Mango Pickle 100%", 120, 5)
	require.NoError(t, conn.Model(&models.Product{}).Where("id = ?", hidden.ID).Update("is_active", false).Error)

	rows, total, err := repo.List(ctx, pagination.Params{Page: 1, Limit: 10}, ListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, rows, 2)
	assert.Equal(t, "Alphonso Mango", rows[0].Name)

	rows, total, err = repo.List(ctx, pagination.Params{}, ListFilter{Search: "MANGO"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, rows, 1)

	rows, _, err = repo.List(ctx, pagination.Params{}, ListFilter{Search: "100%", IncludeInactive: true})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, hidden.ID, rows[0].ID)

	rows, total, err = repo.List(ctx, pagination.Params{Page: 2, Limit: 1}, ListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, rows, 1)
	assert.Equal(t, "Guava", rows[0].Name)
}
