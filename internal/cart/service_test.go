package cart

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/isaacklow/supermart-backend/pkg/db/models"
	pkgerrors "github.com/isaacklow/supermart-backend/pkg/errors"
)

func setupCartTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, conn.Exec(`CREATE TABLE cart_items (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  item_type TEXT NOT NULL DEFAULT 'product',
  item_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	require.NoError(t, conn.Exec(
		`CREATE UNIQUE INDEX ux_cart_items_owner_item ON cart_items (user_id, item_type, item_id);`,
	).Error)

	return conn
}

type stubProductLoader struct {
	products map[uuid.UUID]*models.Product
}

func newStubProductLoader() *stubProductLoader {
	return &stubProductLoader{products: map[uuid.UUID]*models.Product{}}
}

func (s *stubProductLoader) add(name string, quantity int, price string) *models.Product {
	product := &models.Product{
		ID:          uuid.New(),
		ProductName: name,
		Quantity:    quantity,
		Price:       decimal.RequireFromString(price),
	}
	s.products[product.ID] = product
	return product
}

func (s *stubProductLoader) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, ok := s.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return product, nil
}

func (s *stubProductLoader) FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if product, ok := s.products[id]; ok {
			out = append(out, *product)
		}
	}
	return out, nil
}

type cartFixture struct {
	service  Service
	repo     *Repository
	products *stubProductLoader
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()

	conn := setupCartTestDB(t)
	repo := NewRepository(conn)
	products := newStubProductLoader()

	svc, err := NewService(repo, products)
	require.NoError(t, err)

	return &cartFixture{service: svc, repo: repo, products: products}
}

func TestAddItemInsertsThenIncrements(t *testing.T) {
	t.Parallel()

	f := newCartFixture(t)
	userID := uuid.New()
	milk := f.products.add("Milk", 10, "6.99")

	cart, err := f.service.AddItem(context.Background(), userID, AddItemInput{ItemID: milk.ID, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, "Milk", cart.Items[0].ProductName)

	// Adding the same product again bumps the quantity, no second row.
	cart, err = f.service.AddItem(context.Background(), userID, AddItemInput{ItemID: milk.ID, Quantity: 3})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("34.95").Equal(cart.Total), "got total %s", cart.Total)
}

func TestAddItemChecksStock(t *testing.T) {
	t.Parallel()

	f := newCartFixture(t)
	userID := uuid.New()
	milk := f.products.add("Milk", 3, "6.99")

	_, err := f.service.AddItem(context.Background(), userID, AddItemInput{ItemID: milk.ID, Quantity: 4})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())

	// Two adds whose sum exceeds stock are caught on the second add.
	_, err = f.service.AddItem(context.Background(), userID, AddItemInput{ItemID: milk.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = f.service.AddItem(context.Background(), userID, AddItemInput{ItemID: milk.ID, Quantity: 2})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestAddItemUnknownProduct(t *testing.T) {
	t.Parallel()

	f := newCartFixture(t)
	_, err := f.service.AddItem(context.Background(), uuid.New(), AddItemInput{ItemID: uuid.New(), Quantity: 1})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	t.Parallel()

	f := newCartFixture(t)
	milk := f.products.add("Milk", 10, "6.99")

	_, err := f.service.AddItem(context.Background(), uuid.New(), AddItemInput{ItemID: milk.ID, Quantity: 0})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestUpdateQuantityEnforcesOwnership(t *testing.T) {
	t.Parallel()

	f := newCartFixture(t)
	owner := uuid.New()
	milk := f.products.add("Milk", 10, "6.99")

	cart, err := f.service.AddItem(context.Background(), owner, AddItemInput{ItemID: milk.ID, Quantity: 1})
	require.NoError(t, err)
	lineID := cart.Items[0].ID

	cart, err = f.service.UpdateQuantity(context.Background(), owner, lineID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, cart.Items[0].Quantity)

	_, err = f.service.UpdateQuantity(context.Background(), uuid.New(), lineID, 2)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestUpdateQuantityChecksStock(t *testing.T) {
	t.Parallel()

	f := newCartFixture(t)
	owner := uuid.New()
	milk := f.products.add("Milk", 5, "6.99")

	cart, err := f.service.AddItem(context.Background(), owner, AddItemInput{ItemID: milk.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = f.service.UpdateQuantity(context.Background(), owner, cart.Items[0].ID, 6)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestRemoveItem(t *testing.T) {
	t.Parallel()

	f := newCartFixture(t)
	owner := uuid.New()
	milk := f.products.add("Milk", 10, "6.99")
	bread := f.products.add("Bread", 10, "3.50")

	cart, err := f.service.AddItem(context.Background(), owner, AddItemInput{ItemID: milk.ID, Quantity: 1})
	require.NoError(t, err)
	lineID := cart.Items[0].ID
	_, err = f.service.AddItem(context.Background(), owner, AddItemInput{ItemID: bread.ID, Quantity: 1})
	require.NoError(t, err)

	cart, err = f.service.RemoveItem(context.Background(), owner, lineID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, bread.ID, cart.Items[0].ItemID)

	_, err = f.service.RemoveItem(context.Background(), owner, lineID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestClearEmptiesOnlyOwnCart(t *testing.T) {
	t.Parallel()

	f := newCartFixture(t)
	owner := uuid.New()
	other := uuid.New()
	milk := f.products.add("Milk", 10, "6.99")

	_, err := f.service.AddItem(context.Background(), owner, AddItemInput{ItemID: milk.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = f.service.AddItem(context.Background(), other, AddItemInput{ItemID: milk.ID, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, f.service.Clear(context.Background(), owner))

	cart, err := f.service.Get(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.Total.IsZero())

	otherCart, err := f.service.Get(context.Background(), other)
	require.NoError(t, err)
	assert.Len(t, otherCart.Items, 1)
}
