package analytics

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/isaacklow/supermart-backend/internal/catalog"
	"github.com/isaacklow/supermart-backend/pkg/enums"
)

// RecentOrderDTO is one row of the dashboard's latest-orders panel.
type RecentOrderDTO struct {
	ID          uuid.UUID         `json:"id"`
	Username    string            `json:"username"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	Status      enums.OrderStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
}

// DashboardStats is the back-office landing payload.
type DashboardStats struct {
	TotalUsers    int64            `json:"total_users"`
	TotalAdmins   int64            `json:"total_admins"`
	TotalProducts int64            `json:"total_products"`
	LowStockCount int64            `json:"low_stock_count"`
	TotalOrders   int64            `json:"total_orders"`
	TotalRevenue  decimal.Decimal  `json:"total_revenue"`
	RecentOrders  []RecentOrderDTO `json:"recent_orders"`
}

// ProductSales ranks a product by units sold.
type ProductSales struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	UnitsSold   int       `json:"units_sold"`
}

// CategorySales is revenue attributed to one category.
type CategorySales struct {
	Category string          `json:"category"`
	Sales    decimal.Decimal `json:"sales"`
}

// Report is the full analytics payload, recomputed from the relational
// store on every call.
type Report struct {
	TopProducts       []ProductSales       `json:"top_products"`
	SalesByCategory   []CategorySales      `json:"sales_by_category"`
	LowStock          []catalog.ProductDTO `json:"low_stock"`
	InventoryValue    decimal.Decimal      `json:"inventory_value"`
	AverageOrderValue decimal.Decimal      `json:"average_order_value"`
}
