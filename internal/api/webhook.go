package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/dewbox/contribution-service/internal/app"
	"github.com/dewbox/contribution-service/internal/domain"
	"github.com/dewbox/contribution-service/internal/ledger"
	"github.com/dewbox/contribution-service/pkg/paystack"
)

const maxWebhookBodyBytes = 1 << 20

// handlePaystackWebhook verifies and applies a Paystack charge event. Any answer other
// than 2xx makes Paystack redeliver, so settled outcomes such as mismatches and unknown
// references are acknowledged and only transient failures return 5xx.
func (h *Handler) handlePaystackWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	event, err := paystack.ParseWebhook(h.webhookSecret, body, r.Header.Get(paystack.SignatureHeader))
	if err != nil {
		if errors.Is(err, paystack.ErrInvalidSignature) {
			h.logger.Warn("paystack webhook rejected: bad signature", "remote_addr", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "Invalid signature")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid webhook payload")
		return
	}

	switch event.Event {
	case paystack.EventChargeSuccess, paystack.EventChargeFailed:
	default:
		h.logger.Info("paystack webhook ignored", "event", event.Event, "reference", event.Data.Reference)
		w.WriteHeader(http.StatusOK)
		return
	}

	result, err := h.service.ConfirmGatewayPayment(r.Context(), domain.GatewayConfirmation{
		Reference: event.Data.Reference,
		Status:    event.Data.Status,
		Amount:    ledger.Money(event.Data.Amount),
		Currency:  event.Data.Currency,
	})
	if err != nil {
		if app.IsSettledGatewayOutcome(err) || errors.Is(err, app.ErrMissingReference) {
			h.logger.Info("paystack webhook settled without credit", "event", event.Event, "reference", event.Data.Reference, "reason", err.Error())
			w.WriteHeader(http.StatusOK)
			return
		}
		h.respondWithServiceError(w, "paystack_webhook", err)
		return
	}

	h.logger.Info("paystack webhook applied", "reference", event.Data.Reference, "contribution_id", result.ContributionID, "duplicate", result.Duplicate)
	w.WriteHeader(http.StatusOK)
}
