// Package checkout validates that a cart is payable and obtains a hosted
// payment session from the provider. It performs no writes: the order is
// created later by the webhook fulfillment handler, because the browser
// may never return from the provider's checkout page.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sunvolt/solarshop/internal/cart"
	"github.com/sunvolt/solarshop/internal/catalog"
	"github.com/sunvolt/solarshop/internal/payment"
)

type Service interface {
	// CreateSession validates the user's active cart against current stock
	// and returns the provider session with its redirect URL.
	CreateSession(ctx context.Context, userID uuid.UUID, customerEmail string) (*payment.Session, error)
}

type Config struct {
	SuccessURL    string
	CancelURL     string
	PublicBaseURL string
}

type service struct {
	cartRepo cart.Repository
	products catalog.Repository
	payments payment.Client
	cfg      Config
}

func NewService(cartRepo cart.Repository, products catalog.Repository, payments payment.Client, cfg Config) Service {
	return &service{
		cartRepo: cartRepo,
		products: products,
		payments: payments,
		cfg:      cfg,
	}
}

func (s *service) CreateSession(ctx context.Context, userID uuid.UUID, customerEmail string) (*payment.Session, error) {
	c, err := s.cartRepo.GetActiveWithLines(ctx, userID)
	if err != nil {
		if errors.Is(err, cart.ErrCartNotFound) {
			return nil, ErrEmptyCart
		}
		return nil, fmt.Errorf("service: failed to load cart for checkout: %w", err)
	}

	if len(c.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	// Stock is re-read at checkout time; the line snapshots only cover
	// name/price/image.
	stock := make(map[int64]*catalog.Product, len(c.Lines))
	for _, line := range c.Lines {
		product, err := s.products.GetByID(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				return nil, &OutOfStockError{Product: line.Name}
			}
			return nil, fmt.Errorf("service: failed to load product %d for checkout: %w", line.ProductID, err)
		}
		stock[line.ProductID] = product
	}

	for _, line := range c.Lines {
		if stock[line.ProductID].Stock <= 0 {
			return nil, &OutOfStockError{Product: stock[line.ProductID].Name}
		}
	}
	for _, line := range c.Lines {
		if line.Quantity > stock[line.ProductID].Stock {
			return nil, &InsufficientStockError{
				Product:   stock[line.ProductID].Name,
				Available: stock[line.ProductID].Stock,
			}
		}
	}

	lineItems := make([]payment.LineItem, 0, len(c.Lines))
	for _, line := range c.Lines {
		lineItems = append(lineItems, payment.LineItem{
			Name:       line.Name,
			UnitAmount: line.UnitPrice,
			Quantity:   line.Quantity,
			ImageURL:   s.absoluteImageURL(line.ImagePath),
		})
	}

	session, err := s.payments.CreateHostedSession(ctx, payment.SessionRequest{
		LineItems:     lineItems,
		Currency:      c.Currency,
		SuccessURL:    s.cfg.SuccessURL,
		CancelURL:     s.cfg.CancelURL,
		CustomerEmail: customerEmail,
		Metadata: map[string]string{
			"cart_id": c.ID.String(),
			"user_id": userID.String(),
		},
	})
	if err != nil {
		log.Error().Err(err).Stringer("cart_id", c.ID).Msg("service: failed to create hosted checkout session")
		return nil, fmt.Errorf("service: failed to create hosted checkout session: %w", err)
	}

	log.Info().Stringer("cart_id", c.ID).Str("session_id", session.ID).Msg("service: checkout session created")
	return session, nil
}

func (s *service) absoluteImageURL(imagePath string) string {
	if imagePath == "" {
		return ""
	}
	if strings.HasPrefix(imagePath, "http://") || strings.HasPrefix(imagePath, "https://") {
		return imagePath
	}
	return strings.TrimSuffix(s.cfg.PublicBaseURL, "/") + "/" + strings.TrimPrefix(imagePath, "/")
}
