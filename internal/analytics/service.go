package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/isaacklow/supermart-backend/internal/catalog"
	"github.com/isaacklow/supermart-backend/internal/orders"
	"github.com/isaacklow/supermart-backend/internal/users"
	"github.com/isaacklow/supermart-backend/pkg/db/models"
	"github.com/isaacklow/supermart-backend/pkg/enums"
	pkgerrors "github.com/isaacklow/supermart-backend/pkg/errors"
)

const (
	recentOrdersLimit = 5
	topProductsLimit  = 5
)

// Service computes back-office aggregates straight from the relational store.
// Nothing is cached; every call reflects the current data.
type Service interface {
	Dashboard(ctx context.Context) (*DashboardStats, error)
	Report(ctx context.Context) (*Report, error)
}

type service struct {
	users   *users.Repository
	catalog *catalog.Repository
	orders  *orders.Repository
}

// NewService builds an analytics service over the domain repositories.
func NewService(userRepo *users.Repository, catalogRepo *catalog.Repository, orderRepo *orders.Repository) (Service, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	return &service{users: userRepo, catalog: catalogRepo, orders: orderRepo}, nil
}

// Dashboard returns the headline counters and the latest orders.
func (s *service) Dashboard(ctx context.Context) (*DashboardStats, error) {
	totalUsers, err := s.users.Count(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count users")
	}
	totalAdmins, err := s.users.CountByRole(ctx, enums.UserRoleAdmin)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count admins")
	}
	totalProducts, err := s.catalog.CountProducts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count products")
	}
	lowStock, err := s.catalog.CountLowStock(ctx, catalog.LowStockThreshold)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count low stock")
	}
	totalOrders, err := s.orders.Count(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count orders")
	}

	allOrders, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	revenue := decimal.Zero
	for i := range allOrders {
		revenue = revenue.Add(allOrders[i].TotalAmount)
	}

	recent, err := s.orders.ListRecent(ctx, recentOrdersLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list recent orders")
	}
	usernames, err := s.usernames(ctx)
	if err != nil {
		return nil, err
	}
	recentDTOs := make([]RecentOrderDTO, 0, len(recent))
	for i := range recent {
		order := &recent[i]
		recentDTOs = append(recentDTOs, RecentOrderDTO{
			ID:          order.ID,
			Username:    usernames[order.UserID],
			TotalAmount: order.TotalAmount,
			Status:      order.Status,
			CreatedAt:   order.CreatedAt,
		})
	}

	return &DashboardStats{
		TotalUsers:    totalUsers,
		TotalAdmins:   totalAdmins,
		TotalProducts: totalProducts,
		LowStockCount: lowStock,
		TotalOrders:   totalOrders,
		TotalRevenue:  revenue.Round(2),
		RecentOrders:  recentDTOs,
	}, nil
}

// Report returns the sales and inventory aggregates.
func (s *service) Report(ctx context.Context) (*Report, error) {
	allOrders, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	products, err := s.catalog.ListProducts(ctx, catalog.ProductFilter{})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	byID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	report := &Report{
		TopProducts:       topProducts(allOrders, byID),
		SalesByCategory:   salesByCategory(allOrders, byID),
		LowStock:          lowStockDTOs(products),
		InventoryValue:    inventoryValue(products),
		AverageOrderValue: averageOrderValue(allOrders),
	}
	return report, nil
}

func (s *service) usernames(ctx context.Context) (map[uuid.UUID]string, error) {
	accounts, err := s.users.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	out := make(map[uuid.UUID]string, len(accounts))
	for i := range accounts {
		out[accounts[i].ID] = accounts[i].Username
	}
	return out, nil
}

func topProducts(rows []models.Order, byID map[uuid.UUID]*models.Product) []ProductSales {
	units := map[uuid.UUID]int{}
	for i := range rows {
		for j := range rows[i].Items {
			item := &rows[i].Items[j]
			units[item.ProductID] += item.Quantity
		}
	}

	ranked := make([]ProductSales, 0, len(units))
	for id, sold := range units {
		entry := ProductSales{ProductID: id, UnitsSold: sold}
		if p, ok := byID[id]; ok {
			entry.ProductName = p.ProductName
		} else {
			entry.ProductName = id.String()
		}
		ranked = append(ranked, entry)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].UnitsSold != ranked[j].UnitsSold {
			return ranked[i].UnitsSold > ranked[j].UnitsSold
		}
		return ranked[i].ProductName < ranked[j].ProductName
	})
	if len(ranked) > topProductsLimit {
		ranked = ranked[:topProductsLimit]
	}
	return ranked
}

// salesByCategory attributes each order line's revenue to the product's
// current category. Lines whose product has been deleted, or whose product
// carries no category, land in "Uncategorized".
func salesByCategory(rows []models.Order, byID map[uuid.UUID]*models.Product) []CategorySales {
	const uncategorized = "Uncategorized"

	totals := map[string]decimal.Decimal{}
	for i := range rows {
		for j := range rows[i].Items {
			item := &rows[i].Items[j]
			category := uncategorized
			if p, ok := byID[item.ProductID]; ok && p.Category != nil {
				category = p.Category.CategoryName
			}
			line := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			totals[category] = totals[category].Add(line)
		}
	}

	out := make([]CategorySales, 0, len(totals))
	for category, sales := range totals {
		out = append(out, CategorySales{Category: category, Sales: sales.Round(2)})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Sales.Equal(out[j].Sales) {
			return out[i].Sales.GreaterThan(out[j].Sales)
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// lowStockDTOs filters the already-loaded product list rather than issuing a
// second query, sorted by remaining quantity.
func lowStockDTOs(products []models.Product) []catalog.ProductDTO {
	out := make([]catalog.ProductDTO, 0)
	for i := range products {
		p := &products[i]
		if p.Quantity > catalog.LowStockThreshold {
			continue
		}
		dto := catalog.ProductDTO{
			ID:          p.ID,
			ProductName: p.ProductName,
			Quantity:    p.Quantity,
			Price:       p.Price,
			CategoryID:  p.CategoryID,
			Image:       p.Image,
			LowStock:    true,
		}
		if p.Category != nil {
			dto.CategoryName = p.Category.CategoryName
		}
		out = append(out, dto)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Quantity < out[j].Quantity })
	return out
}

func inventoryValue(products []models.Product) decimal.Decimal {
	total := decimal.Zero
	for i := range products {
		p := &products[i]
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(p.Quantity))))
	}
	return total.Round(2)
}

func averageOrderValue(rows []models.Order) decimal.Decimal {
	if len(rows) == 0 {
		return decimal.Zero
	}
	total := decimal.Zero
	for i := range rows {
		total = total.Add(rows[i].TotalAmount)
	}
	return total.Div(decimal.NewFromInt(int64(len(rows)))).Round(2)
}
