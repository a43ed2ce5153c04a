package handler

import (
	"errors"
	"fmt"
	"net/http"

	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/sunvolt/solarshop/internal/cart"
	"github.com/sunvolt/solarshop/internal/catalog"
	"github.com/sunvolt/solarshop/internal/checkout"
	"github.com/sunvolt/solarshop/internal/order"
)

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("handler: failed to write JSON response")
	}
}

func respondWithValidationErrors(w http.ResponseWriter, err error) bool {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return false
	}
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[fieldErr.Field()] = fmt.Sprintf("failed on the '%s' rule", fieldErr.Tag())
	}
	respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
		Error:   "Validation failed",
		Details: details,
	})
	return true
}

func mapErrorToStatusCode(err error) int {
	var outOfStock *checkout.OutOfStockError
	var insufficient *checkout.InsufficientStockError

	switch {
	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, cart.ErrCartNotFound),
		errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusBadRequest
	case errors.As(err, &outOfStock),
		errors.As(err, &insufficient),
		errors.Is(err, order.ErrInvalidStatusTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage keeps internal error chains out of responses while
// preserving the precondition details the UI needs to display.
func clientMessage(err error) string {
	var outOfStock *checkout.OutOfStockError
	var insufficient *checkout.InsufficientStockError

	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		return "Product not found"
	case errors.Is(err, cart.ErrCartNotFound):
		return "Cart not found"
	case errors.Is(err, order.ErrOrderNotFound):
		return "Order not found"
	case errors.Is(err, cart.ErrInvalidQuantity):
		return "Quantity must be greater than zero"
	case errors.Is(err, checkout.ErrEmptyCart):
		return "Cart is empty"
	case errors.As(err, &outOfStock):
		return outOfStock.Error()
	case errors.As(err, &insufficient):
		return insufficient.Error()
	case errors.Is(err, order.ErrInvalidStatusTransition):
		return "Order cannot be refunded in its current status"
	default:
		return "Internal server error"
	}
}
