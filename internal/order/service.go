package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

var ErrInvalidStatusTransition = errors.New("invalid order status transition")

// Orders are immutable after materialization; the only exposed transition
// is paid -> refunded.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending:  {StatusPaid: true, StatusFailed: true},
	StatusPaid:     {StatusRefunded: true},
	StatusFailed:   {},
	StatusRefunded: {},
}

type Service interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error)
	MarkRefunded(ctx context.Context, orderID uuid.UUID) error
}

type service struct {
	orderRepo Repository
}

func NewService(orderRepo Repository) Service {
	return &service{orderRepo: orderRepo}
}

func (s *service) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order by id")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}
	return o, nil
}

func (s *service) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	orders, err := s.orderRepo.GetByUserID(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to fetch user orders")
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}
	return orders, nil
}

func (s *service) MarkRefunded(ctx context.Context, orderID uuid.UUID) error {
	current, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("service: failed to get order for refund: %w", err)
	}

	if current.Status == StatusRefunded {
		log.Info().Stringer("order_id", orderID).Msg("service: order already refunded, no update needed")
		return nil
	}

	if !allowedTransitions[current.Status][StatusRefunded] {
		log.Warn().
			Stringer("order_id", orderID).
			Str("current_status", string(current.Status)).
			Msg("service: invalid refund transition attempt")
		return fmt.Errorf("%w: from %s to %s", ErrInvalidStatusTransition, current.Status, StatusRefunded)
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, StatusRefunded); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to mark order refunded")
		return fmt.Errorf("service: failed to mark order refunded: %w", err)
	}

	log.Info().Stringer("order_id", orderID).Str("old_status", string(current.Status)).Msg("service: order refunded")
	return nil
}
