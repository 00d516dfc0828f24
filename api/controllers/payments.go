package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/isaacklow/supermart-backend/api/responses"
	"github.com/isaacklow/supermart-backend/internal/payments"
	"github.com/isaacklow/supermart-backend/internal/payments/netsqr"
	pkgerrors "github.com/isaacklow/supermart-backend/pkg/errors"
	"github.com/isaacklow/supermart-backend/pkg/logger"
	"github.com/isaacklow/supermart-backend/pkg/metrics"
)

// PaymentMethods lists the providers whose credentials are configured.
func PaymentMethods(registry *payments.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if registry == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment registry unavailable"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"methods": registry.Methods()})
	}
}

// NETSPaymentStatus streams QR payment status over SSE. Each event is one
// JSON object: progress events are {"status":"pending","attempt":n}; the
// terminal event is {"success":true}, {"fail":true,"code":...}, or
// {"error":...}. The stream never writes orders; the client calls finalize
// after a success event. Closing the connection cancels the poller.
func NETSPaymentStatus(gateway *netsqr.Gateway, checkoutMetrics *metrics.CheckoutMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gateway == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotConfigured, `payment method "nets_qr" is not configured`))
			return
		}

		ref := strings.TrimSpace(chi.URLParam(r, "ref"))
		if ref == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "retrieval reference is required"))
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		// Headers are committed; failures from here on are stream events,
		// not HTTP error statuses.
		for event := range gateway.Poller().Watch(r.Context(), ref) {
			payload := streamPayload(event)
			if event.Terminal() {
				checkoutMetrics.ObserveQRPolls(event.Polls)
				checkoutMetrics.IncQROutcome(string(event.Kind))
			}
			if err := writeSSE(w, flusher, payload); err != nil {
				if logg != nil {
					logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "qr status stream closed")
				}
				return
			}
			if event.Terminal() {
				return
			}
		}
	}
}

func streamPayload(event netsqr.Event) map[string]any {
	switch event.Kind {
	case netsqr.EventSuccess:
		return map[string]any{"success": true}
	case netsqr.EventFailed:
		if event.Err != "" {
			return map[string]any{"error": event.Err}
		}
		return map[string]any{"fail": true, "code": "failed"}
	case netsqr.EventTimedOut:
		return map[string]any{"fail": true, "code": "timed_out"}
	default:
		return map[string]any{"status": "pending", "attempt": event.Polls}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
