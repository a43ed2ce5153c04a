package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/sunvolt/solarshop/internal/fulfillment"
	"github.com/sunvolt/solarshop/internal/payment"
)

const maxWebhookBodySize = 1 << 20 // provider events are small; cap the body read

// SignatureHeader carries the provider's webhook signature.
const SignatureHeader = "Payment-Signature"

type WebhookHandler struct {
	svc fulfillment.Service
}

func NewWebhookHandler(svc fulfillment.Service) *WebhookHandler {
	return &WebhookHandler{svc: svc}
}

func (h *WebhookHandler) RegisterRoutes(router chi.Router) {
	router.Post("/webhooks/payment", h.handlePaymentWebhook)
}

// handlePaymentWebhook is authenticated by signature, not by bearer token.
// Status codes drive the provider's retry behavior: 400 means do not
// retry, 500 means redeliver later.
func (h *WebhookHandler) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	err = h.svc.HandleWebhook(r.Context(), payload, r.Header.Get(SignatureHeader))
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			respondWithError(w, http.StatusBadRequest, "Invalid signature")
			return
		}
		log.Error().Err(err).Msg("handler: webhook processing failed, provider will retry")
		respondWithError(w, http.StatusInternalServerError, "Webhook processing failed")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"received": true})
}
