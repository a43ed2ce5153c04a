// Package fulfillment converts verified payment-completed webhook events
// into orders: exactly one order per checkout session, however many times
// the provider delivers the event.
package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sunvolt/solarshop/internal/order"
	"github.com/sunvolt/solarshop/internal/payment"
)

// Mailer sends the order confirmation. Failures must never affect the
// materialization outcome.
type Mailer interface {
	SendOrderConfirmation(recipient string, o *order.Order) error
}

type Service interface {
	// HandleWebhook processes one raw webhook delivery.
	// payment.ErrInvalidSignature is permanent; any other error is
	// transient and the caller should make the provider retry.
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error
}

type service struct {
	repo      Repository
	orderRepo order.Repository
	payments  payment.Client
	mailer    Mailer
}

func NewService(repo Repository, orderRepo order.Repository, payments payment.Client, mailer Mailer) Service {
	return &service{
		repo:      repo,
		orderRepo: orderRepo,
		payments:  payments,
		mailer:    mailer,
	}
}

func (s *service) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := s.payments.VerifyWebhook(payload, signatureHeader)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			log.Warn().Msg("service: webhook delivery with invalid signature rejected")
			return payment.ErrInvalidSignature
		}
		return fmt.Errorf("service: failed to verify webhook: %w", err)
	}

	if event.Type != payment.EventTypeCheckoutCompleted {
		log.Debug().Str("event_type", event.Type).Msg("service: ignoring webhook event type")
		return nil
	}

	session := event.Data.Object
	if session.ID == "" {
		return fmt.Errorf("service: webhook event %s has no session id", event.ID)
	}

	// Idempotency gate: a second delivery of an already-materialized
	// session is success, not work.
	if _, err := s.orderRepo.GetBySessionID(ctx, session.ID); err == nil {
		log.Info().Str("session_id", session.ID).Msg("service: duplicate webhook delivery, order already exists")
		return nil
	} else if !errors.Is(err, order.ErrOrderNotFound) {
		return fmt.Errorf("service: failed to check for existing order: %w", err)
	}

	params := OrderParams{
		SessionID: session.ID,
		UserID:    uuid.FromStringOrNil(session.Metadata["user_id"]),
		CartID:    uuid.FromStringOrNil(session.Metadata["cart_id"]),
		Currency:  session.Currency,
		Amount:    session.AmountTotal,
	}
	if session.PaymentIntentID != "" {
		intentID := session.PaymentIntentID
		params.PaymentIntentID = &intentID
	}

	var (
		o       *order.Order
		created bool
	)
	if params.CartID != uuid.Nil {
		o, created, err = s.repo.MaterializeFromCart(ctx, params)
	} else {
		err = ErrCartUnresolvable
	}
	if errors.Is(err, ErrCartUnresolvable) {
		o, created, err = s.materializeFallback(ctx, params)
	}
	if err != nil {
		log.Error().Err(err).Str("session_id", session.ID).Msg("service: order materialization failed")
		return fmt.Errorf("service: order materialization failed: %w", err)
	}

	if !created {
		log.Info().Str("session_id", session.ID).Msg("service: concurrent delivery already materialized session")
		return nil
	}

	log.Info().
		Stringer("order_id", o.ID).
		Str("session_id", session.ID).
		Int64("amount", o.Amount).
		Msg("service: order materialized from checkout session")

	if s.mailer != nil && session.CustomerEmail != "" {
		// Fire-and-forget: confirmation mail never blocks or fails the
		// fulfillment.
		recipient := session.CustomerEmail
		confirmed := o
		go func() {
			if mailErr := s.mailer.SendOrderConfirmation(recipient, confirmed); mailErr != nil {
				log.Error().Err(mailErr).Stringer("order_id", confirmed.ID).Msg("service: failed to send order confirmation")
			}
		}()
	}

	return nil
}

// materializeFallback rebuilds the order from provider-side line items when
// the local cart is gone.
func (s *service) materializeFallback(ctx context.Context, params OrderParams) (*order.Order, bool, error) {
	log.Warn().Str("session_id", params.SessionID).Msg("service: cart unresolvable, falling back to provider line items")

	items, err := s.payments.RetrieveSessionLineItems(ctx, params.SessionID)
	if err != nil {
		return nil, false, fmt.Errorf("service: failed to retrieve provider line items: %w", err)
	}

	return s.repo.MaterializeFromLineItems(ctx, params, items)
}
