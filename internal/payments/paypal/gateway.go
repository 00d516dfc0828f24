package paypal

import (
	"context"
	"strings"

	"github.com/isaacklow/supermart-backend/internal/payments"
	"github.com/isaacklow/supermart-backend/pkg/config"
	"github.com/isaacklow/supermart-backend/pkg/enums"
	pkgerrors "github.com/isaacklow/supermart-backend/pkg/errors"
	"github.com/isaacklow/supermart-backend/pkg/logger"
)

// Gateway drives wallet payments through PayPal Orders v2. Begin creates a
// CAPTURE-intent order and hands back the approval link; Confirm captures the
// approved order and treats COMPLETED as settled.
type Gateway struct {
	client    *Client
	returnURL string
	cancelURL string
}

// New builds the PayPal gateway. Returns (nil, nil) when credentials are not
// configured so the registry skips the method.
func New(ctx context.Context, cfg config.PayPalConfig, logg *logger.Logger) (*Gateway, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	clientSecret := strings.TrimSpace(cfg.ClientSecret)
	if clientID == "" || clientSecret == "" {
		return nil, nil
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paypal base url is required")
	}

	if logg != nil {
		logg.Info(ctx, "paypal gateway initialized")
	}

	return &Gateway{
		client:    NewClient(cfg.BaseURL, clientID, clientSecret),
		returnURL: strings.TrimSpace(cfg.ReturnURL),
		cancelURL: strings.TrimSpace(cfg.CancelURL),
	}, nil
}

// Name reports the payment method this gateway serves.
func (g *Gateway) Name() enums.PaymentMethod {
	return enums.PaymentMethodPayPal
}

// Begin creates the PayPal order and returns the approval redirect.
func (g *Gateway) Begin(ctx context.Context, req payments.BeginRequest) (*payments.BeginResult, error) {
	if req.Amount.Sign() <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	order, err := g.client.CreateOrder(ctx, CreateOrderInput{
		CurrencyCode: string(req.Currency),
		Value:        req.Amount.StringFixed(2),
		Description:  req.Description,
		ReferenceID:  req.Token,
		ReturnURL:    g.returnURL,
		CancelURL:    g.cancelURL,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create paypal order")
	}

	approve := order.ApproveURL()
	if approve == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paypal order missing approval link")
	}

	return &payments.BeginResult{
		ProviderRef: order.ID,
		RedirectURL: approve,
	}, nil
}

// Confirm captures the order after shopper approval.
func (g *Gateway) Confirm(ctx context.Context, providerRef string) (*payments.ConfirmResult, error) {
	if strings.TrimSpace(providerRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider reference is required")
	}

	captured, err := g.client.CaptureOrder(ctx, providerRef)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "capture paypal order")
	}

	return &payments.ConfirmResult{
		Paid:      captured.Status == "COMPLETED",
		Reference: captured.ID,
	}, nil
}
