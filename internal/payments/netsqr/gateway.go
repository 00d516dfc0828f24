package netsqr

import (
	"context"
	"strings"
	"time"

	"github.com/isaacklow/supermart-backend/internal/payments"
	"github.com/isaacklow/supermart-backend/pkg/config"
	"github.com/isaacklow/supermart-backend/pkg/enums"
	pkgerrors "github.com/isaacklow/supermart-backend/pkg/errors"
	"github.com/isaacklow/supermart-backend/pkg/logger"
)

// Gateway drives QR payments through NETS. Begin issues a dynamic QR code for
// the cart amount; the controller then streams poller events over SSE, and
// Confirm performs one final status check before the order is written.
type Gateway struct {
	client   *Client
	interval time.Duration
	maxPolls int
}

// New builds the NETS gateway. Returns (nil, nil) when credentials are not
// configured so the registry skips the method.
func New(ctx context.Context, cfg config.NETSConfig, logg *logger.Logger) (*Gateway, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	projectID := strings.TrimSpace(cfg.ProjectID)
	if apiKey == "" || projectID == "" {
		return nil, nil
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nets base url is required")
	}

	if logg != nil {
		logg.Info(ctx, "nets qr gateway initialized")
	}

	return &Gateway{
		client:   NewClient(cfg.BaseURL, apiKey, projectID),
		interval: cfg.PollInterval,
		maxPolls: cfg.MaxPolls,
	}, nil
}

// Name reports the payment method this gateway serves.
func (g *Gateway) Name() enums.PaymentMethod {
	return enums.PaymentMethodNETSQR
}

// Begin requests a dynamic QR code for the checkout amount.
func (g *Gateway) Begin(ctx context.Context, req payments.BeginRequest) (*payments.BeginResult, error) {
	if req.Amount.Sign() <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	resp, err := g.client.RequestQR(ctx, QRRequest{
		TxnID:       req.Token,
		AmountCents: req.Amount.Shift(2).Round(0).IntPart(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "request nets qr")
	}
	if !resp.Approved() || resp.QRCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "nets declined qr request")
	}

	return &payments.BeginResult{
		ProviderRef: resp.TxnRetrievalRef,
		QRCode:      resp.QRCode,
	}, nil
}

// Confirm performs a single status query. Checkout finalization runs this
// even after the SSE stream reported success, so the order is only written on
// NETS's authoritative answer.
func (g *Gateway) Confirm(ctx context.Context, providerRef string) (*payments.ConfirmResult, error) {
	if strings.TrimSpace(providerRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider reference is required")
	}

	status, err := g.client.QueryStatus(ctx, providerRef)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query nets status")
	}

	return &payments.ConfirmResult{
		Paid:      status.Paid(),
		Reference: providerRef,
	}, nil
}

// Poller returns a poller configured with this gateway's interval and budget.
func (g *Gateway) Poller() *Poller {
	return NewPoller(g.client, g.interval, g.maxPolls)
}
