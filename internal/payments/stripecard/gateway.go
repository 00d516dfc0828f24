package stripecard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/isaacklow/supermart-backend/internal/payments"
	"github.com/isaacklow/supermart-backend/pkg/config"
	"github.com/isaacklow/supermart-backend/pkg/enums"
	pkgerrors "github.com/isaacklow/supermart-backend/pkg/errors"
	"github.com/isaacklow/supermart-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Gateway drives card payments through Stripe Checkout Sessions. The shopper
// is redirected to Stripe's hosted page and the session is retrieved once on
// return to decide whether the payment settled.
type Gateway struct {
	api         *stripe.Client
	environment string
	successURL  string
	cancelURL   string
}

// New initializes the Stripe gateway with the configured secrets and env.
// Returns (nil, nil) when no API key is configured so the registry simply
// skips the method.
func New(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Gateway, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, nil
	}

	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	api := stripe.NewClient(apiKey)

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe gateway initialized (%s)", env))
	}

	return &Gateway{
		api:         api,
		environment: env,
		successURL:  strings.TrimSpace(cfg.SuccessURL),
		cancelURL:   strings.TrimSpace(cfg.CancelURL),
	}, nil
}

// Name reports the payment method this gateway serves.
func (g *Gateway) Name() enums.PaymentMethod {
	return enums.PaymentMethodStripe
}

// Begin opens a Stripe Checkout Session for the full cart amount and returns
// the hosted payment page URL.
func (g *Gateway) Begin(ctx context.Context, req payments.BeginRequest) (*payments.BeginResult, error) {
	if req.Amount.Sign() <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	params := &stripe.CheckoutSessionCreateParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.Token),
		SuccessURL:        stripe.String(g.successURL),
		CancelURL:         stripe.String(g.cancelURL),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(string(req.Currency))),
					UnitAmount: stripe.Int64(amountCents(req)),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
			},
		},
	}

	session, err := g.api.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe checkout session")
	}

	return &payments.BeginResult{
		ProviderRef: session.ID,
		RedirectURL: session.URL,
	}, nil
}

// Confirm retrieves the session once and reports it paid only when Stripe
// says payment_status is "paid".
func (g *Gateway) Confirm(ctx context.Context, providerRef string) (*payments.ConfirmResult, error) {
	if strings.TrimSpace(providerRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider reference is required")
	}

	session, err := g.api.V1CheckoutSessions.Retrieve(ctx, providerRef, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve stripe checkout session")
	}

	return &payments.ConfirmResult{
		Paid:      session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Reference: session.ID,
	}, nil
}

func amountCents(req payments.BeginRequest) int64 {
	return req.Amount.Shift(2).Round(0).IntPart()
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
