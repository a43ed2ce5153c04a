package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/sunvolt/solarshop/internal/auth"
	"github.com/sunvolt/solarshop/internal/cart"
)

type AddItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gte=1"`
}

type SetQuantityRequest struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

type SyncRequest struct {
	Items []cart.SyncItem `json:"items" validate:"required"`
}

type CartHandler struct {
	svc      cart.Service
	validate *validator.Validate
}

func NewCartHandler(svc cart.Service) *CartHandler {
	return &CartHandler{
		svc:      svc,
		validate: validator.New(),
	}
}

func (h *CartHandler) RegisterRoutes(router chi.Router) {
	router.Get("/cart", h.handleGetCart)
	router.Post("/cart/items", h.handleAddItem)
	router.Put("/cart/items/{productID}", h.handleSetQuantity)
	router.Delete("/cart/items/{productID}", h.handleRemoveItem)
	router.Delete("/cart", h.handleClear)
	router.Post("/cart/sync", h.handleSync)
}

func (h *CartHandler) principal(w http.ResponseWriter, r *http.Request, action auth.Action) (auth.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return auth.Principal{}, false
	}
	if !auth.Authorize(p, action, auth.Resource{Type: "cart", OwnerID: p.UserID}) {
		respondWithError(w, http.StatusForbidden, "Forbidden")
		return auth.Principal{}, false
	}
	return p, true
}

func (h *CartHandler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r, auth.ActionCartRead)
	if !ok {
		return
	}

	c, err := h.svc.GetCart(r.Context(), p.UserID)
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to get cart")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
		return
	}

	respondWithJSON(w, http.StatusOK, c)
}

func (h *CartHandler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r, auth.ActionCartWrite)
	if !ok {
		return
	}

	var req AddItemRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		if !respondWithValidationErrors(w, err) {
			respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		}
		return
	}

	c, err := h.svc.AddItem(r.Context(), p.UserID, req.ProductID, req.Quantity)
	if err != nil {
		log.Warn().Err(err).Int64("product_id", req.ProductID).Msg("handler: failed to add cart item")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
		return
	}

	respondWithJSON(w, http.StatusOK, c)
}

func (h *CartHandler) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r, auth.ActionCartWrite)
	if !ok {
		return
	}

	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	var req SetQuantityRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		if !respondWithValidationErrors(w, err) {
			respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		}
		return
	}

	c, err := h.svc.SetQuantity(r.Context(), p.UserID, productID, req.Quantity)
	if err != nil {
		log.Warn().Err(err).Int64("product_id", productID).Msg("handler: failed to set cart quantity")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
		return
	}

	respondWithJSON(w, http.StatusOK, c)
}

func (h *CartHandler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r, auth.ActionCartWrite)
	if !ok {
		return
	}

	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	c, err := h.svc.RemoveItem(r.Context(), p.UserID, productID)
	if err != nil {
		log.Warn().Err(err).Int64("product_id", productID).Msg("handler: failed to remove cart item")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
		return
	}

	respondWithJSON(w, http.StatusOK, c)
}

func (h *CartHandler) handleClear(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r, auth.ActionCartWrite)
	if !ok {
		return
	}

	c, err := h.svc.Clear(r.Context(), p.UserID)
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to clear cart")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
		return
	}

	respondWithJSON(w, http.StatusOK, c)
}

func (h *CartHandler) handleSync(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r, auth.ActionCartWrite)
	if !ok {
		return
	}

	var req SyncRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		if !respondWithValidationErrors(w, err) {
			respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		}
		return
	}

	c, err := h.svc.Sync(r.Context(), p.UserID, req.Items)
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to sync guest cart")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
		return
	}

	respondWithJSON(w, http.StatusOK, c)
}
