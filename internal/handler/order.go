package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sunvolt/solarshop/internal/auth"
	"github.com/sunvolt/solarshop/internal/invoice"
	"github.com/sunvolt/solarshop/internal/order"
)

type OrderHandler struct {
	svc order.Service
}

func NewOrderHandler(svc order.Service) *OrderHandler {
	return &OrderHandler{svc: svc}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Get("/orders", h.handleListOrders)
	router.Get("/orders/{id}", h.handleGetOrder)
	router.Get("/orders/{id}/invoice", h.handleGetInvoice)
	router.Post("/orders/{id}/refund", h.handleRefund)
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	orders, err := h.svc.GetOrdersByUserID(r.Context(), p.UserID)
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to list orders")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
		return
	}

	respondWithJSON(w, http.StatusOK, orders)
}

// loadAuthorized fetches the order and checks the principal may read it.
func (h *OrderHandler) loadAuthorized(w http.ResponseWriter, r *http.Request) (*order.Order, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}

	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order id")
		return nil, false
	}

	o, err := h.svc.GetOrderByID(r.Context(), id)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
		return nil, false
	}

	if !auth.Authorize(p, auth.ActionOrderRead, auth.Resource{Type: "order", OwnerID: o.UserID}) {
		respondWithError(w, http.StatusForbidden, "Forbidden")
		return nil, false
	}

	return o, true
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}

	html, err := invoice.FromOrder(o).RenderHTML()
	if err != nil {
		log.Error().Err(err).Stringer("order_id", o.ID).Msg("handler: failed to render invoice")
		respondWithError(w, http.StatusInternalServerError, "Failed to render invoice")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

func (h *OrderHandler) handleRefund(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if !auth.Authorize(p, auth.ActionOrderRefund, auth.Resource{Type: "order"}) {
		respondWithError(w, http.StatusForbidden, "Forbidden: Admins only")
		return
	}

	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	if err := h.svc.MarkRefunded(r.Context(), id); err != nil {
		log.Warn().Err(err).Stringer("order_id", id).Msg("handler: refund failed")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": string(order.StatusRefunded)})
}
