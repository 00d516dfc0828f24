package orders

import (
	"context"
	"fmt"
	"sync"
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
	"github.com/isaacklow/supermart-backend/pkg/enums"
	pkgerrors "github.com/isaacklow/supermart-backend/pkg/errors"
	"github.com/isaacklow/supermart-backend/pkg/outbox"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	for _, stmt := range []string{
		`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  total_amount NUMERIC NOT NULL,
  payment_method TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'Pending',
  display_currency TEXT NOT NULL DEFAULT 'SGD',
  bnpl_months INTEGER,
  created_at DATETIME
);`,
		`CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  price NUMERIC NOT NULL
);`,
	} {
		require.NoError(t, conn.Exec(stmt).Error)
	}

	return conn
}

type stubProductNamer struct {
	names map[uuid.UUID]string
}

func (s *stubProductNamer) FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		name, ok := s.names[id]
		if !ok {
			continue
		}
		out = append(out, models.Product{ID: id, ProductName: name})
	}
	return out, nil
}

type stubUserNamer struct {
	users map[uuid.UUID]string
}

func (s *stubUserNamer) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	name, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.User{ID: id, Username: name}, nil
}

func (s *stubUserNamer) List(ctx context.Context) ([]models.User, error) {
	var out []models.User
	for id, name := range s.users {
		out = append(out, models.User{ID: id, Username: name})
	}
	return out, nil
}

type capturingEmitter struct {
	mu     sync.Mutex
	events []outbox.DomainEvent
}

func (c *capturingEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

type ordersFixture struct {
	conn     *gorm.DB
	repo     *Repository
	service  Service
	products *stubProductNamer
	users    *stubUserNamer
	box      *capturingEmitter
}

func newOrdersFixture(t *testing.T) *ordersFixture {
	t.Helper()

	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	products := &stubProductNamer{names: map[uuid.UUID]string{}}
	users := &stubUserNamer{users: map[uuid.UUID]string{}}
	box := &capturingEmitter{}

	svc, err := NewService(repo, db.NewFromGorm(conn), products, users, box)
	require.NoError(t, err)

	return &ordersFixture{conn: conn, repo: repo, service: svc, products: products, users: users, box: box}
}

func (f *ordersFixture) seedOrder(t *testing.T, userID uuid.UUID, total string, placedAt time.Time, items ...models.OrderItem) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:              uuid.New(),
		UserID:          userID,
		TotalAmount:     decimal.RequireFromString(total),
		PaymentMethod:   enums.PaymentMethodStripe,
		Status:          enums.OrderStatusPending,
		DisplayCurrency: enums.CurrencySGD,
		CreatedAt:       placedAt,
	}
	require.NoError(t, f.conn.Create(order).Error)
	for i := range items {
		items[i].ID = uuid.New()
		items[i].OrderID = order.ID
	}
	if len(items) > 0 {
		require.NoError(t, f.conn.Create(&items).Error)
	}
	return order
}

func TestListForUserNumbersNewestFirst(t *testing.T) {
	t.Parallel()

	f := newOrdersFixture(t)
	userID := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := f.seedOrder(t, userID, "10.00", base)
	second := f.seedOrder(t, userID, "20.00", base.Add(time.Hour))
	third := f.seedOrder(t, userID, "30.00", base.Add(2*time.Hour))

	// Another shopper's order must not shift the numbering.
	f.seedOrder(t, uuid.New(), "99.00", base.Add(30*time.Minute))

	out, err := f.service.ListForUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, third.ID, out[0].ID)
	assert.Equal(t, 3, out[0].Number)
	assert.Equal(t, second.ID, out[1].ID)
	assert.Equal(t, 2, out[1].Number)
	assert.Equal(t, first.ID, out[2].ID)
	assert.Equal(t, 1, out[2].Number)
}

func TestListForUserResolvesProductNames(t *testing.T) {
	t.Parallel()

	f := newOrdersFixture(t)
	userID := uuid.New()
	productID := uuid.New()
	f.products.names[productID] = "Oat Milk"

	f.seedOrder(t, userID, "13.98", time.Now().UTC(), models.OrderItem{
		ProductID: productID,
		Quantity:  2,
		Price:     decimal.RequireFromString("6.99"),
	})

	out, err := f.service.ListForUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, out[0].Items, 1)

	item := out[0].Items[0]
	assert.Equal(t, "Oat Milk", item.ProductName)
	assert.Equal(t, 2, item.Quantity)
	assert.True(t, decimal.RequireFromString("13.98").Equal(item.LineTotal))
}

func TestListForUserRequiresUserID(t *testing.T) {
	t.Parallel()

	f := newOrdersFixture(t)
	_, err := f.service.ListForUser(context.Background(), uuid.Nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestGetInvoiceEnforcesOwnership(t *testing.T) {
	t.Parallel()

	f := newOrdersFixture(t)
	owner := uuid.New()
	order := f.seedOrder(t, owner, "10.00", time.Now().UTC())

	got, err := f.service.GetInvoice(context.Background(), owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	assert.Equal(t, 1, got.Number)

	_, err = f.service.GetInvoice(context.Background(), uuid.New(), order.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestListAllForAdminIncludesBuyerAndSummary(t *testing.T) {
	t.Parallel()

	f := newOrdersFixture(t)
	alice := uuid.New()
	f.users.users[alice] = "alice"
	productID := uuid.New()
	f.products.names[productID] = "Eggs"

	f.seedOrder(t, alice, "7.00", time.Now().UTC(), models.OrderItem{
		ProductID: productID,
		Quantity:  3,
		Price:     decimal.RequireFromString("2.00"),
	})

	out, err := f.service.ListAllForAdmin(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, alice, out[0].UserID)
	assert.Equal(t, "alice", out[0].Username)
	assert.Equal(t, "Eggs (x3)", out[0].Summary)
	assert.Equal(t, 1, out[0].Number)
}

func TestListAllForAdminNumbersPerUser(t *testing.T) {
	t.Parallel()

	f := newOrdersFixture(t)
	alice := uuid.New()
	bob := uuid.New()
	f.users.users[alice] = "alice"
	f.users.users[bob] = "bob"
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	aliceFirst := f.seedOrder(t, alice, "10.00", base)
	bobFirst := f.seedOrder(t, bob, "20.00", base.Add(time.Hour))
	aliceSecond := f.seedOrder(t, alice, "30.00", base.Add(2*time.Hour))

	out, err := f.service.ListAllForAdmin(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 3)

	numbers := map[uuid.UUID]int{}
	for _, dto := range out {
		numbers[dto.ID] = dto.Number
	}
	assert.Equal(t, 1, numbers[aliceFirst.ID])
	assert.Equal(t, 2, numbers[aliceSecond.ID])
	assert.Equal(t, 1, numbers[bobFirst.ID])
}

func TestUpdateStatusTransitionsAndEmits(t *testing.T) {
	t.Parallel()

	f := newOrdersFixture(t)
	order := f.seedOrder(t, uuid.New(), "10.00", time.Now().UTC())

	err := f.service.UpdateStatus(context.Background(), order.ID, enums.OrderStatusShipped)
	require.NoError(t, err)

	got, err := f.repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, got.Status)

	require.Len(t, f.box.events, 1)
	assert.Equal(t, enums.EventOrderStatusChanged, f.box.events[0].EventType)
	assert.Equal(t, order.ID, f.box.events[0].AggregateID)
}

func TestUpdateStatusNoOpWhenUnchanged(t *testing.T) {
	t.Parallel()

	f := newOrdersFixture(t)
	order := f.seedOrder(t, uuid.New(), "10.00", time.Now().UTC())

	err := f.service.UpdateStatus(context.Background(), order.ID, enums.OrderStatusPending)
	require.NoError(t, err)
	assert.Empty(t, f.box.events)
}

func TestUpdateStatusUnknownOrder(t *testing.T) {
	t.Parallel()

	f := newOrdersFixture(t)
	err := f.service.UpdateStatus(context.Background(), uuid.New(), enums.OrderStatusShipped)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestUpdateStatusRejectsInvalidStatus(t *testing.T) {
	t.Parallel()

	f := newOrdersFixture(t)
	err := f.service.UpdateStatus(context.Background(), uuid.New(), enums.OrderStatus("Teleported"))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
