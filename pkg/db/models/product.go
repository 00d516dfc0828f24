package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a stocked catalog listing.
type Product struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductName  string          `gorm:"column:product_name;not null"`
	Quantity     int             `gorm:"column:quantity;not null;default:0"`
	Price        decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	CategoryID   *uuid.UUID      `gorm:"column:category_id;type:uuid"`
	Category     *Category       `gorm:"foreignKey:CategoryID"`
	Image        *string         `gorm:"column:image"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
