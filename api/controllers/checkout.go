package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/isaacklow/supermart-backend/api/middleware"
	"github.com/isaacklow/supermart-backend/api/responses"
	"github.com/isaacklow/supermart-backend/api/validators"
	"github.com/isaacklow/supermart-backend/internal/checkout"
	"github.com/isaacklow/supermart-backend/pkg/enums"
	pkgerrors "github.com/isaacklow/supermart-backend/pkg/errors"
	"github.com/isaacklow/supermart-backend/pkg/logger"
)

type initiateCheckoutRequest struct {
	Method     string      `json:"method" validate:"required"`
	ItemIDs    []uuid.UUID `json:"item_ids" validate:"required,min=1"`
	Currency   string      `json:"currency,omitempty"`
	BNPLMonths *int        `json:"bnpl_months,omitempty"`
}

type finalizeCheckoutRequest struct {
	Token string `json:"token" validate:"required"`
}

// CheckoutInitiate opens a payment for the selected cart lines and returns
// the session token plus the provider handoff (redirect URL or QR payload).
func CheckoutInitiate(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var body initiateCheckoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(body.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, err.Error()))
			return
		}

		input := checkout.InitiateInput{
			Method:     method,
			ItemIDs:    body.ItemIDs,
			BNPLMonths: body.BNPLMonths,
		}
		if body.Currency != "" {
			currency, err := enums.ParseCurrency(body.Currency)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, err.Error()))
				return
			}
			input.Currency = currency
		}

		result, err := svc.Initiate(r.Context(), middleware.UserIDFromContext(r.Context()), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// CheckoutFinalize confirms the payment with the provider and writes the
// order. Errors carry machine-readable codes; PAYMENT_NOT_COMPLETED leaves
// the session intact for a retry.
func CheckoutFinalize(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var body finalizeCheckoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Finalize(r.Context(), middleware.UserIDFromContext(r.Context()), body.Token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
