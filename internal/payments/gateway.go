package payments

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/isaacklow/supermart-backend/pkg/enums"
	pkgerrors "github.com/isaacklow/supermart-backend/pkg/errors"
)

// BeginRequest asks a gateway to open a payment for a checkout session.
type BeginRequest struct {
	Token       string
	Amount      decimal.Decimal
	Currency    enums.Currency
	Description string
}

// BeginResult carries what the client needs to complete the payment plus the
// provider reference the confirm step will use.
type BeginResult struct {
	ProviderRef string `json:"provider_ref"`
	RedirectURL string `json:"redirect_url,omitempty"`
	QRCode      string `json:"qr_code,omitempty"`
}

// ConfirmResult reports whether the provider considers the payment settled.
type ConfirmResult struct {
	Paid      bool
	Reference string
}

// Gateway is one payment provider integration. Begin opens the payment and
// Confirm checks the terminal state; neither touches order storage.
type Gateway interface {
	Name() enums.PaymentMethod
	Begin(ctx context.Context, req BeginRequest) (*BeginResult, error)
	Confirm(ctx context.Context, providerRef string) (*ConfirmResult, error)
}

// Registry resolves gateways by payment method. Methods whose credentials are
// absent are simply not registered.
type Registry struct {
	gateways map[enums.PaymentMethod]Gateway
}

// NewRegistry builds a registry from the provided gateways, skipping nils.
func NewRegistry(gateways ...Gateway) *Registry {
	m := make(map[enums.PaymentMethod]Gateway, len(gateways))
	for _, g := range gateways {
		if g == nil {
			continue
		}
		m[g.Name()] = g
	}
	return &Registry{gateways: m}
}

// Resolve returns the gateway for a method, or a "not configured" error the
// controller can surface as 503.
func (r *Registry) Resolve(method enums.PaymentMethod) (Gateway, error) {
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported payment method %q", method))
	}
	g, ok := r.gateways[method]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotConfigured, fmt.Sprintf("payment method %q is not configured", method))
	}
	return g, nil
}

// Methods lists the configured payment methods.
func (r *Registry) Methods() []enums.PaymentMethod {
	out := make([]enums.PaymentMethod, 0, len(r.gateways))
	for m := range r.gateways {
		out = append(out, m)
	}
	return out
}
