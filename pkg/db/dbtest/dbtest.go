// Package dbtest opens isolated in-memory SQLite databases carrying the full schema.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/srrfarms/storefront-api/pkg/db"
	"github.com/srrfarms/storefront-api/pkg/db/models"
)

// Open returns a migrated client backed by a database private to the test.
func Open(t testing.TB) *db.Client {
	t.Helper()
	dsn := fmt.Sprintf("file:srr_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	// a single connection serialises writers the way row locks would in Postgres
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db.Wrap(conn)
}

// MustCreateUser inserts a shopper with a default address.
func MustCreateUser(t testing.TB, conn *gorm.DB, isAdmin bool) *models.User {
	t.Helper()
	phone := "9876543210"
	user := &models.User{
		Name:    "Test Shopper",
		Email:   fmt.Sprintf("srr_test_%s@example.com", uuid.NewString()),
		Phone:   &phone,
		IsAdmin: isAdmin,
	}
	user.DefaultAddress = DefaultAddress()
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// MustCreateProduct inserts an active product.
func MustCreateProduct(t testing.TB, conn *gorm.DB, name string, price int64, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:     name,
		Price:    price,
		Stock:    stock,
		IsActive: true,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}
