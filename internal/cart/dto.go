package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/isaacklow/supermart-backend/pkg/db/models"
	"github.com/isaacklow/supermart-backend/pkg/enums"
)

// LineDTO is the wire representation of one cart line, joined with the
// current product name and image for display.
type LineDTO struct {
	ID          uuid.UUID          `json:"id"`
	ItemType    enums.CartItemType `json:"item_type"`
	ItemID      uuid.UUID          `json:"item_id"`
	ProductName string             `json:"product_name"`
	Image       *string            `json:"image,omitempty"`
	Quantity    int                `json:"quantity"`
	UnitPrice   decimal.Decimal    `json:"unit_price"`
	LineTotal   decimal.Decimal    `json:"line_total"`
}

// CartDTO is the full cart view.
type CartDTO struct {
	Items []LineDTO       `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// AddItemInput adds a product to the cart, incrementing quantity when the
// line already exists.
type AddItemInput struct {
	ItemID   uuid.UUID
	Quantity int
}

func lineTotal(item *models.CartItem) decimal.Decimal {
	return item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
}
