package catalog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/isaacklow/supermart-backend/pkg/db"
	"github.com/isaacklow/supermart-backend/pkg/db/models"
	pkgerrors "github.com/isaacklow/supermart-backend/pkg/errors"
)

func setupCatalogTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	for _, stmt := range []string{
		`CREATE TABLE categories (
  id TEXT PRIMARY KEY,
  category_name TEXT NOT NULL,
  created_at DATETIME
);`,
		`CREATE UNIQUE INDEX ux_categories_name ON categories (category_name);`,
		`CREATE TABLE products (
  id TEXT PRIMARY KEY,
  product_name TEXT NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 0,
  price NUMERIC NOT NULL,
  category_id TEXT,
  image TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	} {
		require.NoError(t, conn.Exec(stmt).Error)
	}

	return conn
}

type catalogFixture struct {
	conn    *gorm.DB
	repo    *Repository
	service Service
}

func newCatalogFixture(t *testing.T) *catalogFixture {
	t.Helper()

	conn := setupCatalogTestDB(t)
	repo := NewRepository(conn)

	svc, err := NewService(repo, db.NewFromGorm(conn), nil)
	require.NoError(t, err)

	return &catalogFixture{conn: conn, repo: repo, service: svc}
}

func (f *catalogFixture) seedProduct(t *testing.T, name string, quantity int, price string) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:          uuid.New(),
		ProductName: name,
		Quantity:    quantity,
		Price:       decimal.RequireFromString(price),
	}
	require.NoError(t, f.conn.Create(product).Error)
	return product
}

func TestCreateProductValidation(t *testing.T) {
	t.Parallel()

	f := newCatalogFixture(t)
	ctx := context.Background()

	_, err := f.service.CreateProduct(ctx, CreateProductInput{ProductName: "  ", Price: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = f.service.CreateProduct(ctx, CreateProductInput{ProductName: "Milk", Quantity: -1, Price: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = f.service.CreateProduct(ctx, CreateProductInput{ProductName: "Milk", Price: decimal.NewFromInt(-1)})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	unknownCategory := uuid.New()
	_, err = f.service.CreateProduct(ctx, CreateProductInput{
		ProductName: "Milk",
		Price:       decimal.NewFromInt(1),
		CategoryID:  &unknownCategory,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestCreateProductRoundsPrice(t *testing.T) {
	t.Parallel()

	f := newCatalogFixture(t)

	created, err := f.service.CreateProduct(context.Background(), CreateProductInput{
		ProductName: "Milk",
		Quantity:    30,
		Price:       decimal.RequireFromString("6.999"),
	})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("7.00").Equal(created.Price), "got price %s", created.Price)
	assert.False(t, created.LowStock)
}

func TestUpdateProductPartial(t *testing.T) {
	t.Parallel()

	f := newCatalogFixture(t)
	product := f.seedProduct(t, "Milk", 30, "6.99")

	newName := "Oat Milk"
	updated, err := f.service.UpdateProduct(context.Background(), product.ID, UpdateProductInput{
		ProductName: &newName,
	})
	require.NoError(t, err)
	assert.Equal(t, "Oat Milk", updated.ProductName)
	assert.Equal(t, 30, updated.Quantity)
	assert.True(t, product.Price.Equal(updated.Price))

	_, err = f.service.UpdateProduct(context.Background(), uuid.New(), UpdateProductInput{ProductName: &newName})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestBulkRestockIncrementsStock(t *testing.T) {
	t.Parallel()

	f := newCatalogFixture(t)
	milk := f.seedProduct(t, "Milk", 5, "6.99")
	bread := f.seedProduct(t, "Bread", 8, "3.50")

	err := f.service.BulkRestock(context.Background(), []RestockLine{
		{ProductID: milk.ID, Quantity: 100},
		{ProductID: bread.ID, Quantity: 50},
	})
	require.NoError(t, err)

	got, err := f.repo.FindProduct(context.Background(), milk.ID)
	require.NoError(t, err)
	assert.Equal(t, 105, got.Quantity)

	got, err = f.repo.FindProduct(context.Background(), bread.ID)
	require.NoError(t, err)
	assert.Equal(t, 58, got.Quantity)
}

func TestBulkRestockRollsBackOnUnknownProduct(t *testing.T) {
	t.Parallel()

	f := newCatalogFixture(t)
	milk := f.seedProduct(t, "Milk", 5, "6.99")

	err := f.service.BulkRestock(context.Background(), []RestockLine{
		{ProductID: milk.ID, Quantity: 100},
		{ProductID: uuid.New(), Quantity: 10},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	// The valid line must not have been applied.
	got, err := f.repo.FindProduct(context.Background(), milk.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)
}

func TestBulkRestockValidation(t *testing.T) {
	t.Parallel()

	f := newCatalogFixture(t)

	err := f.service.BulkRestock(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	err = f.service.BulkRestock(context.Background(), []RestockLine{{ProductID: uuid.New(), Quantity: 0}})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestListLowStockUsesThreshold(t *testing.T) {
	t.Parallel()

	f := newCatalogFixture(t)
	low := f.seedProduct(t, "Milk", LowStockThreshold, "6.99")
	f.seedProduct(t, "Bread", LowStockThreshold+1, "3.50")

	out, err := f.service.ListLowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, low.ID, out[0].ID)
	assert.True(t, out[0].LowStock)
}

func TestListProductsFilters(t *testing.T) {
	t.Parallel()

	f := newCatalogFixture(t)
	category, err := f.service.CreateCategory(context.Background(), "Dairy")
	require.NoError(t, err)

	_, err = f.service.CreateProduct(context.Background(), CreateProductInput{
		ProductName: "Oat Milk",
		Quantity:    30,
		Price:       decimal.RequireFromString("6.99"),
		CategoryID:  &category.ID,
	})
	require.NoError(t, err)
	f.seedProduct(t, "Bread", 30, "3.50")

	out, err := f.service.ListProducts(context.Background(), ProductFilter{Search: "  MILK "})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Oat Milk", out[0].ProductName)
	assert.Equal(t, "Dairy", out[0].CategoryName)

	out, err = f.service.ListProducts(context.Background(), ProductFilter{CategoryID: &category.ID})
	require.NoError(t, err)
	require.Len(t, out, 1)

	out, err = f.service.ListProducts(context.Background(), ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestFeaturedProductsReturnsNewestFirst(t *testing.T) {
	t.Parallel()

	f := newCatalogFixture(t)
	for i := 0; i < FeaturedLimit+2; i++ {
		product := &models.Product{
			ID:          uuid.New(),
			ProductName: fmt.Sprintf("Product %02d", i),
			Quantity:    30,
			Price:       decimal.RequireFromString("1.00"),
			CreatedAt:   time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, f.conn.Create(product).Error)
	}

	out, err := f.service.FeaturedProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, out, FeaturedLimit)
	assert.Equal(t, "Product 09", out[0].ProductName)
}

func TestCreateCategoryRejectsDuplicates(t *testing.T) {
	t.Parallel()

	f := newCatalogFixture(t)

	created, err := f.service.CreateCategory(context.Background(), " Dairy ")
	require.NoError(t, err)
	assert.Equal(t, "Dairy", created.CategoryName)

	_, err = f.service.CreateCategory(context.Background(), "Dairy")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())

	_, err = f.service.CreateCategory(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestDeleteCategoryUnknown(t *testing.T) {
	t.Parallel()

	f := newCatalogFixture(t)
	err := f.service.DeleteCategory(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
