package analytics

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

	"github.com/isaacklow/supermart-backend/internal/catalog"
	"github.com/isaacklow/supermart-backend/internal/orders"
	"github.com/isaacklow/supermart-backend/internal/users"
	"github.com/isaacklow/supermart-backend/pkg/db/models"
	"github.com/isaacklow/supermart-backend/pkg/enums"
)

func setupAnalyticsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	for _, stmt := range []string{
		`CREATE TABLE users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'user',
  address TEXT NOT NULL DEFAULT '',
  contact TEXT NOT NULL DEFAULT '',
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE categories (
  id TEXT PRIMARY KEY,
  category_name TEXT NOT NULL,
  created_at DATETIME
);`,
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

type analyticsFixture struct {
	conn    *gorm.DB
	service Service
}

func newAnalyticsFixture(t *testing.T) *analyticsFixture {
	t.Helper()

	conn := setupAnalyticsTestDB(t)
	svc, err := NewService(users.NewRepository(conn), catalog.NewRepository(conn), orders.NewRepository(conn))
	require.NoError(t, err)

	return &analyticsFixture{conn: conn, service: svc}
}

func (f *analyticsFixture) seedUser(t *testing.T, username string, role enums.UserRole) *models.User {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(t, f.conn.Create(user).Error)
	return user
}

func (f *analyticsFixture) seedProduct(t *testing.T, name string, quantity int, price string, categoryID *uuid.UUID) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:          uuid.New(),
		ProductName: name,
		Quantity:    quantity,
		Price:       decimal.RequireFromString(price),
		CategoryID:  categoryID,
	}
	require.NoError(t, f.conn.Create(product).Error)
	return product
}

func (f *analyticsFixture) seedOrder(t *testing.T, userID uuid.UUID, total string, placedAt time.Time, items ...models.OrderItem) *models.Order {
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

func TestDashboardCountersAndRevenue(t *testing.T) {
	t.Parallel()

	f := newAnalyticsFixture(t)
	admin := f.seedUser(t, "admin", enums.UserRoleAdmin)
	shopper := f.seedUser(t, "alice", enums.UserRoleUser)
	f.seedProduct(t, "Milk", 5, "6.99", nil)
	f.seedProduct(t, "Bread", 100, "3.50", nil)

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	f.seedOrder(t, shopper.ID, "10.00", base)
	f.seedOrder(t, admin.ID, "25.50", base.Add(time.Hour))

	stats, err := f.service.Dashboard(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 2, stats.TotalUsers)
	assert.EqualValues(t, 1, stats.TotalAdmins)
	assert.EqualValues(t, 2, stats.TotalProducts)
	assert.EqualValues(t, 1, stats.LowStockCount)
	assert.EqualValues(t, 2, stats.TotalOrders)
	assert.True(t, decimal.RequireFromString("35.50").Equal(stats.TotalRevenue), "got revenue %s", stats.TotalRevenue)

	require.Len(t, stats.RecentOrders, 2)
	assert.Equal(t, "admin", stats.RecentOrders[0].Username)
	assert.Equal(t, "alice", stats.RecentOrders[1].Username)
}

func TestReportRanksTopProducts(t *testing.T) {
	t.Parallel()

	f := newAnalyticsFixture(t)
	shopper := f.seedUser(t, "alice", enums.UserRoleUser)
	milk := f.seedProduct(t, "Milk", 100, "6.99", nil)
	bread := f.seedProduct(t, "Bread", 100, "3.50", nil)

	now := time.Now().UTC()
	f.seedOrder(t, shopper.ID, "24.47", now,
		models.OrderItem{ProductID: milk.ID, Quantity: 3, Price: decimal.RequireFromString("6.99")},
		models.OrderItem{ProductID: bread.ID, Quantity: 1, Price: decimal.RequireFromString("3.50")},
	)
	f.seedOrder(t, shopper.ID, "7.00", now.Add(time.Minute),
		models.OrderItem{ProductID: bread.ID, Quantity: 2, Price: decimal.RequireFromString("3.50")},
	)

	report, err := f.service.Report(context.Background())
	require.NoError(t, err)

	require.Len(t, report.TopProducts, 2)
	assert.Equal(t, "Milk", report.TopProducts[0].ProductName)
	assert.Equal(t, 3, report.TopProducts[0].UnitsSold)
	assert.Equal(t, "Bread", report.TopProducts[1].ProductName)
	assert.Equal(t, 3, report.TopProducts[1].UnitsSold)

	assert.True(t, decimal.RequireFromString("15.74").Equal(report.AverageOrderValue),
		"got average %s", report.AverageOrderValue)
}

func TestReportGroupsSalesByCategory(t *testing.T) {
	t.Parallel()

	f := newAnalyticsFixture(t)
	shopper := f.seedUser(t, "alice", enums.UserRoleUser)

	dairy := &models.Category{ID: uuid.New(), CategoryName: "Dairy"}
	require.NoError(t, f.conn.Create(dairy).Error)

	milk := f.seedProduct(t, "Milk", 100, "6.99", &dairy.ID)
	loose := f.seedProduct(t, "Loose Item", 100, "1.00", nil)

	f.seedOrder(t, shopper.ID, "14.98", time.Now().UTC(),
		models.OrderItem{ProductID: milk.ID, Quantity: 2, Price: decimal.RequireFromString("6.99")},
		models.OrderItem{ProductID: loose.ID, Quantity: 1, Price: decimal.RequireFromString("1.00")},
	)

	report, err := f.service.Report(context.Background())
	require.NoError(t, err)

	require.Len(t, report.SalesByCategory, 2)
	assert.Equal(t, "Dairy", report.SalesByCategory[0].Category)
	assert.True(t, decimal.RequireFromString("13.98").Equal(report.SalesByCategory[0].Sales))
	assert.Equal(t, "Uncategorized", report.SalesByCategory[1].Category)
	assert.True(t, decimal.RequireFromString("1.00").Equal(report.SalesByCategory[1].Sales))
}

func TestReportInventoryValue(t *testing.T) {
	t.Parallel()

	f := newAnalyticsFixture(t)
	f.seedProduct(t, "Milk", 10, "6.99", nil)
	f.seedProduct(t, "Bread", 4, "3.50", nil)

	report, err := f.service.Report(context.Background())
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("83.90").Equal(report.InventoryValue),
		"got value %s", report.InventoryValue)
	assert.True(t, report.AverageOrderValue.IsZero())
	assert.Empty(t, report.TopProducts)
}
