package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/isaacklow/supermart-backend/pkg/enums"
)

// InitiateInput opens a checkout session for the selected cart lines.
type InitiateInput struct {
	Method     enums.PaymentMethod
	ItemIDs    []uuid.UUID
	Currency   enums.Currency
	BNPLMonths *int
}

// InitiateResult hands the client everything needed to complete payment.
type InitiateResult struct {
	Token       string          `json:"token"`
	Total       decimal.Decimal `json:"total"`
	Currency    enums.Currency  `json:"currency"`
	RedirectURL string          `json:"redirect_url,omitempty"`
	QRCode      string          `json:"qr_code,omitempty"`
	ProviderRef string          `json:"provider_ref"`
}

// FinalizeResult reports the order written after payment confirmation.
type FinalizeResult struct {
	OrderID uuid.UUID       `json:"order_id"`
	Total   decimal.Decimal `json:"total"`
	Status  string          `json:"status"`
}
