package checkout

import (
	"context"
	"errors"
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

	"github.com/isaacklow/supermart-backend/internal/cart"
	"github.com/isaacklow/supermart-backend/internal/catalog"
	"github.com/isaacklow/supermart-backend/internal/orders"
	"github.com/isaacklow/supermart-backend/internal/payments"
	"github.com/isaacklow/supermart-backend/pkg/db"
	"github.com/isaacklow/supermart-backend/pkg/db/models"
	"github.com/isaacklow/supermart-backend/pkg/enums"
	pkgerrors "github.com/isaacklow/supermart-backend/pkg/errors"
	"github.com/isaacklow/supermart-backend/pkg/outbox"
)

func setupCheckoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	for _, stmt := range []string{
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
		`CREATE TABLE cart_items (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  item_type TEXT NOT NULL DEFAULT 'product',
  item_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
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

type stubGateway struct {
	method     enums.PaymentMethod
	begin      payments.BeginResult
	beginErr   error
	paid       bool
	confirmErr error
}

func (g *stubGateway) Name() enums.PaymentMethod { return g.method }

func (g *stubGateway) Begin(ctx context.Context, req payments.BeginRequest) (*payments.BeginResult, error) {
	if g.beginErr != nil {
		return nil, g.beginErr
	}
	out := g.begin
	if out.ProviderRef == "" {
		out.ProviderRef = "ref-" + req.Token
	}
	return &out, nil
}

func (g *stubGateway) Confirm(ctx context.Context, providerRef string) (*payments.ConfirmResult, error) {
	if g.confirmErr != nil {
		return nil, g.confirmErr
	}
	return &payments.ConfirmResult{Paid: g.paid, Reference: providerRef}, nil
}

type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*PaymentSession
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[string]*PaymentSession)}
}

func (s *memSessionStore) Save(ctx context.Context, session *PaymentSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.sessions[session.Token] = &copied
	return nil
}

func (s *memSessionStore) Consume(ctx context.Context, token string) (*PaymentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	delete(s.sessions, token)
	copied := *session
	return &copied, nil
}

func (s *memSessionStore) has(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[token]
	return ok
}

type recordingOutbox struct {
	mu     sync.Mutex
	events []outbox.DomainEvent
}

func (r *recordingOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingOutbox) byType(eventType enums.OutboxEventType) []outbox.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []outbox.DomainEvent
	for _, e := range r.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type checkoutFixture struct {
	conn     *gorm.DB
	service  Service
	gateway  *stubGateway
	sessions *memSessionStore
	box      *recordingOutbox
	cartRepo *cart.Repository
	catRepo  *catalog.Repository
	ordRepo  *orders.Repository
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()

	conn := setupCheckoutTestDB(t)
	gateway := &stubGateway{method: enums.PaymentMethodStripe, paid: true}
	sessions := newMemSessionStore()
	box := &recordingOutbox{}

	cartRepo := cart.NewRepository(conn)
	catRepo := catalog.NewRepository(conn)
	ordRepo := orders.NewRepository(conn)

	svc, err := NewService(ServiceParams{
		Tx:          db.NewFromGorm(conn),
		CartRepo:    cartRepo,
		CatalogRepo: catRepo,
		OrdersRepo:  ordRepo,
		Gateways:    payments.NewRegistry(gateway),
		Sessions:    sessions,
		Outbox:      box,
	})
	require.NoError(t, err)

	return &checkoutFixture{
		conn:     conn,
		service:  svc,
		gateway:  gateway,
		sessions: sessions,
		box:      box,
		cartRepo: cartRepo,
		catRepo:  catRepo,
		ordRepo:  ordRepo,
	}
}

func (f *checkoutFixture) seedProduct(t *testing.T, name string, quantity int, price string) *models.Product {
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

func (f *checkoutFixture) seedCartLine(t *testing.T, userID uuid.UUID, product *models.Product, quantity int) *models.CartItem {
	t.Helper()
	line := &models.CartItem{
		ID:        uuid.New(),
		UserID:    userID,
		ItemType:  enums.CartItemTypeProduct,
		ItemID:    product.ID,
		Quantity:  quantity,
		UnitPrice: product.Price,
	}
	require.NoError(t, f.conn.Create(line).Error)
	return line
}

func TestInitiateSnapshotsSelectedLines(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	userID := uuid.New()

	milk := f.seedProduct(t, "Milk", 10, "6.99")
	bread := f.seedProduct(t, "Bread", 10, "3.50")
	milkLine := f.seedCartLine(t, userID, milk, 2)
	f.seedCartLine(t, userID, bread, 1)

	result, err := f.service.Initiate(context.Background(), userID, InitiateInput{
		Method:  enums.PaymentMethodStripe,
		ItemIDs: []uuid.UUID{milkLine.ID},
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, decimal.RequireFromString("13.98").Equal(result.Total), "got total %s", result.Total)
	assert.Equal(t, enums.CurrencySGD, result.Currency)
	assert.NotEmpty(t, result.Token)
	assert.NotEmpty(t, result.ProviderRef)

	// Only the selected line is parked; the cart itself is untouched.
	assert.True(t, f.sessions.has(result.Token))
	lines, err := f.cartRepo.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, lines, 2)

	var stocked models.Product
	require.NoError(t, f.conn.First(&stocked, "id = ?", milk.ID).Error)
	assert.Equal(t, 10, stocked.Quantity, "initiate must not reserve stock")
}

func TestInitiateRejectsEmptySelection(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	userID := uuid.New()
	milk := f.seedProduct(t, "Milk", 10, "6.99")
	f.seedCartLine(t, userID, milk, 1)

	_, err := f.service.Initiate(context.Background(), userID, InitiateInput{
		Method:  enums.PaymentMethodStripe,
		ItemIDs: nil,
	})
	require.Error(t, err)
	require.NotNil(t, pkgerrors.As(err))
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	// A selection naming only unknown rows fails the same way.
	_, err = f.service.Initiate(context.Background(), userID, InitiateInput{
		Method:  enums.PaymentMethodStripe,
		ItemIDs: []uuid.UUID{uuid.New()},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestInitiateRejectsInsufficientStock(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	userID := uuid.New()
	milk := f.seedProduct(t, "Milk", 1, "6.99")
	line := f.seedCartLine(t, userID, milk, 2)

	_, err := f.service.Initiate(context.Background(), userID, InitiateInput{
		Method:  enums.PaymentMethodStripe,
		ItemIDs: []uuid.UUID{line.ID},
	})
	require.Error(t, err)
	require.NotNil(t, pkgerrors.As(err))
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestInitiateRejectsUnknownBNPLTerm(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	userID := uuid.New()
	milk := f.seedProduct(t, "Milk", 10, "6.99")
	line := f.seedCartLine(t, userID, milk, 1)

	months := 4
	_, err := f.service.Initiate(context.Background(), userID, InitiateInput{
		Method:     enums.PaymentMethodStripe,
		ItemIDs:    []uuid.UUID{line.ID},
		BNPLMonths: &months,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestInitiateRejectsUnconfiguredMethod(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	userID := uuid.New()
	milk := f.seedProduct(t, "Milk", 10, "6.99")
	line := f.seedCartLine(t, userID, milk, 1)

	_, err := f.service.Initiate(context.Background(), userID, InitiateInput{
		Method:  enums.PaymentMethodPayPal,
		ItemIDs: []uuid.UUID{line.ID},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotConfigured, pkgerrors.As(err).Code())
}

func TestFinalizeWritesOrderAndClearsSelectedRows(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	userID := uuid.New()

	milk := f.seedProduct(t, "Milk", 10, "6.99")
	bread := f.seedProduct(t, "Bread", 10, "3.50")
	milkLine := f.seedCartLine(t, userID, milk, 2)
	f.seedCartLine(t, userID, bread, 1)

	initiated, err := f.service.Initiate(context.Background(), userID, InitiateInput{
		Method:  enums.PaymentMethodStripe,
		ItemIDs: []uuid.UUID{milkLine.ID},
	})
	require.NoError(t, err)

	result, err := f.service.Finalize(context.Background(), userID, initiated.Token)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.NotEqual(t, uuid.Nil, result.OrderID)
	assert.True(t, decimal.RequireFromString("13.98").Equal(result.Total))
	assert.Equal(t, string(enums.OrderStatusPending), result.Status)

	order, err := f.ordRepo.FindByID(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, userID, order.UserID)
	assert.Equal(t, enums.PaymentMethodStripe, order.PaymentMethod)
	require.Len(t, order.Items, 1)
	assert.Equal(t, milk.ID, order.Items[0].ProductID)
	assert.Equal(t, 2, order.Items[0].Quantity)

	var stocked models.Product
	require.NoError(t, f.conn.First(&stocked, "id = ?", milk.ID).Error)
	assert.Equal(t, 8, stocked.Quantity)

	// Only the snapshotted row is gone; the bread line survives.
	lines, err := f.cartRepo.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, bread.ID, lines[0].ItemID)

	created := f.box.byType(enums.EventOrderCreated)
	require.Len(t, created, 1)
	assert.Equal(t, result.OrderID, created[0].AggregateID)

	// The token is spent.
	_, err = f.service.Finalize(context.Background(), userID, initiated.Token)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestFinalizeEmitsLowStockWhenDrained(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	userID := uuid.New()

	// 22 on hand, buying 3 lands at 19, below the threshold of 20.
	milk := f.seedProduct(t, "Milk", 22, "6.99")
	line := f.seedCartLine(t, userID, milk, 3)

	initiated, err := f.service.Initiate(context.Background(), userID, InitiateInput{
		Method:  enums.PaymentMethodStripe,
		ItemIDs: []uuid.UUID{line.ID},
	})
	require.NoError(t, err)

	_, err = f.service.Finalize(context.Background(), userID, initiated.Token)
	require.NoError(t, err)

	lowStock := f.box.byType(enums.EventProductLowStock)
	require.Len(t, lowStock, 1)
	assert.Equal(t, milk.ID, lowStock[0].AggregateID)
}

func TestFinalizeNotPaidRestoresSession(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	userID := uuid.New()

	milk := f.seedProduct(t, "Milk", 10, "6.99")
	line := f.seedCartLine(t, userID, milk, 2)

	initiated, err := f.service.Initiate(context.Background(), userID, InitiateInput{
		Method:  enums.PaymentMethodStripe,
		ItemIDs: []uuid.UUID{line.ID},
	})
	require.NoError(t, err)

	f.gateway.paid = false
	_, err = f.service.Finalize(context.Background(), userID, initiated.Token)
	require.Error(t, err)
	require.NotNil(t, pkgerrors.As(err))
	assert.Equal(t, pkgerrors.CodePaymentNotCompleted, pkgerrors.As(err).Code())

	// No order, no stock movement, and the token is still redeemable.
	count, err := f.ordRepo.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.True(t, f.sessions.has(initiated.Token))

	f.gateway.paid = true
	result, err := f.service.Finalize(context.Background(), userID, initiated.Token)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, result.OrderID)
}

func TestFinalizeRejectsForeignSession(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	userID := uuid.New()

	milk := f.seedProduct(t, "Milk", 10, "6.99")
	line := f.seedCartLine(t, userID, milk, 1)

	initiated, err := f.service.Initiate(context.Background(), userID, InitiateInput{
		Method:  enums.PaymentMethodStripe,
		ItemIDs: []uuid.UUID{line.ID},
	})
	require.NoError(t, err)

	_, err = f.service.Finalize(context.Background(), uuid.New(), initiated.Token)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
}

func TestFinalizeConcurrentCallsCreateOneOrder(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	userID := uuid.New()

	milk := f.seedProduct(t, "Milk", 10, "6.99")
	line := f.seedCartLine(t, userID, milk, 2)

	initiated, err := f.service.Initiate(context.Background(), userID, InitiateInput{
		Method:  enums.PaymentMethodStripe,
		ItemIDs: []uuid.UUID{line.ID},
	})
	require.NoError(t, err)

	const callers = 4
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, errs[slot] = f.service.Finalize(context.Background(), userID, initiated.Token)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.NotNil(t, pkgerrors.As(err), "unexpected error type: %v", err)
		assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
	}
	assert.Equal(t, 1, succeeded)

	count, err := f.ordRepo.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestFinalizeGatewayErrorRestoresSession(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	userID := uuid.New()

	milk := f.seedProduct(t, "Milk", 10, "6.99")
	line := f.seedCartLine(t, userID, milk, 1)

	initiated, err := f.service.Initiate(context.Background(), userID, InitiateInput{
		Method:  enums.PaymentMethodStripe,
		ItemIDs: []uuid.UUID{line.ID},
	})
	require.NoError(t, err)

	f.gateway.confirmErr = errors.New("provider unreachable")
	_, err = f.service.Finalize(context.Background(), userID, initiated.Token)
	require.Error(t, err)
	assert.True(t, f.sessions.has(initiated.Token), "session must survive an unknown outcome")
}

func TestSessionStoreConsumeIsOneShot(t *testing.T) {
	t.Parallel()

	store := newMemSessionStore()
	session := &PaymentSession{
		Token:     uuid.NewString(),
		UserID:    uuid.New(),
		Method:    enums.PaymentMethodStripe,
		Currency:  enums.CurrencySGD,
		Total:     decimal.RequireFromString("9.99"),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Save(context.Background(), session))

	got, err := store.Consume(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.UserID, got.UserID)

	_, err = store.Consume(context.Background(), session.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
