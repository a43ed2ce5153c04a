package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/sunvolt/solarshop/internal/auth"
	"github.com/sunvolt/solarshop/internal/checkout"
)

type CheckoutResponse struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

type CheckoutHandler struct {
	svc checkout.Service
}

func NewCheckoutHandler(svc checkout.Service) *CheckoutHandler {
	return &CheckoutHandler{svc: svc}
}

func (h *CheckoutHandler) RegisterRoutes(router chi.Router) {
	router.Post("/checkout/session", h.handleCreateSession)
}

func (h *CheckoutHandler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if !auth.Authorize(p, auth.ActionCheckout, auth.Resource{Type: "cart", OwnerID: p.UserID}) {
		respondWithError(w, http.StatusForbidden, "Forbidden")
		return
	}

	session, err := h.svc.CreateSession(r.Context(), p.UserID, p.Email)
	if err != nil {
		log.Warn().Err(err).Stringer("user_id", p.UserID).Msg("handler: checkout session creation failed")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
		return
	}

	respondWithJSON(w, http.StatusCreated, CheckoutResponse{
		SessionID:   session.ID,
		RedirectURL: session.RedirectURL,
	})
}
