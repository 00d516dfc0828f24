package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/isaacklow/supermart-backend/pkg/enums"
)

// ItemDTO is one purchased line, joined with the current product name for
// display.
type ItemDTO struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// OrderDTO is the shopper-facing order view. Number is the per-user sequence
// assigned in creation order, so a shopper's first order is always #1
// regardless of how the list is sorted.
type OrderDTO struct {
	ID              uuid.UUID           `json:"id"`
	Number          int                 `json:"number"`
	Status          enums.OrderStatus   `json:"status"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	DisplayCurrency enums.Currency      `json:"display_currency"`
	BNPLMonths      *int                `json:"bnpl_months,omitempty"`
	Items           []ItemDTO           `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
}

// AdminOrderDTO extends the order view with buyer identity for the back
// office.
type AdminOrderDTO struct {
	OrderDTO
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Summary  string    `json:"summary"`
}
