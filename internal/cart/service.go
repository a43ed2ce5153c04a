package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sunvolt/solarshop/internal/catalog"
)

var ErrInvalidQuantity = errors.New("quantity must be greater than zero")

// Service owns the active-cart lifecycle for a user. Every operation takes
// the acting user explicitly and returns the refreshed cart view.
type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*Cart, error)
	AddItem(ctx context.Context, userID uuid.UUID, productID int64, quantity int) (*Cart, error)
	SetQuantity(ctx context.Context, userID uuid.UUID, productID int64, quantity int) (*Cart, error)
	RemoveItem(ctx context.Context, userID uuid.UUID, productID int64) (*Cart, error)
	Clear(ctx context.Context, userID uuid.UUID) (*Cart, error)
	Sync(ctx context.Context, userID uuid.UUID, items []SyncItem) (*Cart, error)
}

type service struct {
	cartRepo Repository
	products catalog.Repository
	currency string
}

func NewService(cartRepo Repository, products catalog.Repository, currency string) Service {
	return &service{
		cartRepo: cartRepo,
		products: products,
		currency: currency,
	}
}

func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	c, err := s.cartRepo.GetOrCreateActive(ctx, userID, s.currency)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to get or create active cart")
		return nil, fmt.Errorf("service: failed to get or create active cart: %w", err)
	}
	return c, nil
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, productID int64, quantity int) (*Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			log.Warn().Int64("product_id", productID).Msg("service: add item for unknown product")
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("service: failed to load product %d: %w", productID, err)
	}

	c, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	input := LineInput{
		ProductID: product.ID,
		Name:      product.Name,
		ImagePath: product.ImagePath,
		UnitPrice: product.UnitPrice,
		Quantity:  quantity,
	}
	if err := s.cartRepo.AddLine(ctx, c.ID, input); err != nil {
		log.Error().Err(err).Stringer("cart_id", c.ID).Int64("product_id", productID).Msg("service: failed to add cart line")
		return nil, fmt.Errorf("service: failed to add cart line: %w", err)
	}

	return s.refresh(ctx, userID)
}

func (s *service) SetQuantity(ctx context.Context, userID uuid.UUID, productID int64, quantity int) (*Cart, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}

	c, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.cartRepo.SetLineQuantity(ctx, c.ID, productID, quantity); err != nil {
		log.Error().Err(err).Stringer("cart_id", c.ID).Int64("product_id", productID).Int("quantity", quantity).Msg("service: failed to set cart line quantity")
		return nil, fmt.Errorf("service: failed to set cart line quantity: %w", err)
	}

	return s.refresh(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID uuid.UUID, productID int64) (*Cart, error) {
	c, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.cartRepo.DeleteLine(ctx, c.ID, productID); err != nil {
		log.Error().Err(err).Stringer("cart_id", c.ID).Int64("product_id", productID).Msg("service: failed to remove cart line")
		return nil, fmt.Errorf("service: failed to remove cart line: %w", err)
	}

	return s.refresh(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	c, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.cartRepo.ClearLines(ctx, c.ID); err != nil {
		log.Error().Err(err).Stringer("cart_id", c.ID).Msg("service: failed to clear cart")
		return nil, fmt.Errorf("service: failed to clear cart: %w", err)
	}

	return s.refresh(ctx, userID)
}

// Sync folds a client-held guest cart into the server cart. Quantities are
// additive on both sides, so replaying or reordering the merge cannot lose
// items. Unknown products are skipped rather than failing the whole merge.
func (s *service) Sync(ctx context.Context, userID uuid.UUID, items []SyncItem) (*Cart, error) {
	c, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	inputs := make([]LineInput, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			continue
		}
		product, err := s.products.GetByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				log.Warn().Int64("product_id", item.ProductID).Msg("service: skipping unknown product during cart sync")
				continue
			}
			return nil, fmt.Errorf("service: failed to load product %d during sync: %w", item.ProductID, err)
		}
		inputs = append(inputs, LineInput{
			ProductID: product.ID,
			Name:      product.Name,
			ImagePath: product.ImagePath,
			UnitPrice: product.UnitPrice,
			Quantity:  item.Quantity,
		})
	}

	if len(inputs) > 0 {
		if err := s.cartRepo.MergeLines(ctx, c.ID, inputs); err != nil {
			log.Error().Err(err).Stringer("cart_id", c.ID).Msg("service: failed to merge guest cart")
			return nil, fmt.Errorf("service: failed to merge guest cart: %w", err)
		}
	}

	return s.refresh(ctx, userID)
}

func (s *service) refresh(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	c, err := s.cartRepo.GetActiveWithLines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to reload cart: %w", err)
	}
	return c, nil
}
