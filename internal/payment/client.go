// Package payment wraps the external hosted-checkout provider: session
// creation, webhook signature verification and the fallback line-item
// retrieval used when a local cart cannot be resolved.
package payment

import (
	"context"
	"errors"
)

// EventTypeCheckoutCompleted is the only event type this service acts on;
// every other type is acknowledged and ignored.
const EventTypeCheckoutCompleted = "checkout.session.completed"

var ErrInvalidSignature = errors.New("invalid webhook signature")

// LineItem is one entry of a hosted checkout session, amounts in minor
// currency units.
type LineItem struct {
	Name       string `json:"name"`
	UnitAmount int64  `json:"unit_amount"`
	Quantity   int    `json:"quantity"`
	ImageURL   string `json:"image_url,omitempty"`
}

// SessionRequest describes the hosted session to create. Metadata is
// round-tripped back on the completion webhook and carries the cart/user
// linkage.
type SessionRequest struct {
	LineItems     []LineItem        `json:"line_items"`
	Currency      string            `json:"currency"`
	SuccessURL    string            `json:"success_url"`
	CancelURL     string            `json:"cancel_url"`
	CustomerEmail string            `json:"customer_email,omitempty"`
	Metadata      map[string]string `json:"metadata"`
}

type Session struct {
	ID          string `json:"id"`
	RedirectURL string `json:"url"`
}

// CheckoutSession is the session object as reported inside a webhook event.
type CheckoutSession struct {
	ID              string            `json:"id"`
	PaymentIntentID string            `json:"payment_intent"`
	AmountTotal     *int64            `json:"amount_total"`
	Currency        string            `json:"currency"`
	CustomerEmail   string            `json:"customer_email"`
	Metadata        map[string]string `json:"metadata"`
}

type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object CheckoutSession `json:"object"`
	} `json:"data"`
}

type Client interface {
	CreateHostedSession(ctx context.Context, req SessionRequest) (*Session, error)
	// VerifyWebhook authenticates a raw webhook delivery against the shared
	// secret and returns the parsed event. ErrInvalidSignature means the
	// delivery must be rejected permanently.
	VerifyWebhook(payload []byte, signatureHeader string) (*Event, error)
	// RetrieveSessionLineItems re-queries the provider for a session's line
	// items. Fallback path only.
	RetrieveSessionLineItems(ctx context.Context, sessionID string) ([]LineItem, error)
}
