package products

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/srrfarms/storefront-api/pkg/db/dbtest"
	pkgerrors "github.com/srrfarms/storefront-api/pkg/errors"
)

func newTestService(t *testing.T) (Service, *Repository) {
	t.Helper()
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo
}

func TestCreateValidatesInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []CreateInput{
		{Name: " ", Price: 10, Stock: 1},
		{Name: "Papaya", Price: 0, Stock: 1},
		{Name: "Papaya", Price: 10, Stock: -1},
	}
	for _, input := range cases {
		_, err := svc.Create(ctx, input)
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error for %+v, got %v", input, err)
		}
	}
}

func TestCreateInactiveProductIsHiddenFromGet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inactive := false
	created, err := svc.Create(ctx, CreateInput{Name: "Seasonal Jamun", Price: 90, Stock: 4, IsActive: &inactive})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.IsActive {
		t.Fatal("expected product to be inactive")
	}
	if _, err := svc.Get(ctx, created.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateRestocksAndReprices(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Name: "Sapota", Price: 80, Stock: 0})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.InStock {
		t.Fatal("expected out of stock")
	}

	stock := 25
	price := int64(95)
	updated, err := svc.Update(ctx, created.ID, UpdateInput{Stock: &stock, Price: &price})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Stock != 25 || updated.Price != 95 || !updated.InStock {
		t.Fatalf("unexpected product after update: %+v", updated)
	}

	negative := -1
	if _, err := svc.Update(ctx, created.ID, UpdateInput{Stock: &negative}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateMissingProduct(t *testing.T) {
	svc, _ := newTestService(t)
	stock := 1
	_, err := svc.Update(context.Background(), uuid.New(), UpdateInput{Stock: &stock})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListReturnsPaginationMeta(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	conn := repo.db
	for _, name := range []string{"Apple", "Banana", "Cherry"} {
		dbtest.MustCreateProduct(t, conn, name, 100, 1)
	}

	list, err := svc.List(ctx, ListInput{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(list.Products))
	}
	meta := list.Pagination
	if meta.Total != 3 || meta.TotalPages != 2 || !meta.HasNext || meta.HasPrev {
		t.Fatalf("unexpected meta: %+v", meta)
	}
}
