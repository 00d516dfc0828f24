package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/isaacklow/supermart-backend/pkg/db/models"
)

// LowStockThreshold marks products that need restocking on the dashboard.
const LowStockThreshold = 20

// FeaturedLimit caps the storefront landing page selection.
const FeaturedLimit = 8

// ProductFilter narrows product listings.
type ProductFilter struct {
	CategoryID *uuid.UUID
	Search     string
}

// ProductDTO is the wire representation of a product.
type ProductDTO struct {
	ID           uuid.UUID       `json:"id"`
	ProductName  string          `json:"product_name"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	CategoryID   *uuid.UUID      `json:"category_id,omitempty"`
	CategoryName string          `json:"category_name,omitempty"`
	Image        *string         `json:"image,omitempty"`
	LowStock     bool            `json:"low_stock"`
}

// CategoryDTO is the wire representation of a category.
type CategoryDTO struct {
	ID           uuid.UUID `json:"id"`
	CategoryName string    `json:"category_name"`
}

// CreateProductInput carries the admin payload for a new product.
type CreateProductInput struct {
	ProductName string
	Quantity    int
	Price       decimal.Decimal
	CategoryID  *uuid.UUID
	Image       *string
}

// UpdateProductInput carries a partial product update.
type UpdateProductInput struct {
	ProductName *string
	Quantity    *int
	Price       *decimal.Decimal
	CategoryID  *uuid.UUID
	Image       *string
}

// RestockLine is one entry of a bulk restock request.
type RestockLine struct {
	ProductID uuid.UUID
	Quantity  int
}

func toProductDTO(p *models.Product) *ProductDTO {
	dto := &ProductDTO{
		ID:          p.ID,
		ProductName: p.ProductName,
		Quantity:    p.Quantity,
		Price:       p.Price,
		CategoryID:  p.CategoryID,
		Image:       p.Image,
		LowStock:    p.Quantity <= LowStockThreshold,
	}
	if p.Category != nil {
		dto.CategoryName = p.Category.CategoryName
	}
	return dto
}

func toCategoryDTO(c *models.Category) *CategoryDTO {
	return &CategoryDTO{ID: c.ID, CategoryName: c.CategoryName}
}
