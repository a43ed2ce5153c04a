package order

import (
	"time"

	"github.com/gofrs/uuid"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusFailed   Status = "failed"
	StatusRefunded Status = "refunded"
)

func (s Status) String() string {
	return string(s)
}

// Address is the billing/shipping snapshot captured at order creation,
// stored as a JSONB document and never updated afterwards.
type Address struct {
	Name       string `json:"name,omitempty"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Line is an immutable order position. ProductID is a logical reference:
// the catalog entry may be deleted later, or may never have existed when
// the line was reconstructed from provider data (nil in that case).
// LineTotal is stored rather than derived so historical documents stay
// accurate whatever happens to the pricing.
type Line struct {
	ID        uuid.UUID `json:"id" db:"id"`
	OrderID   uuid.UUID `json:"order_id" db:"order_id"`
	ProductID *int64    `json:"product_id" db:"product_id"`
	Name      string    `json:"name" db:"name"`
	ImagePath string    `json:"image_path" db:"image_path"`
	UnitPrice int64     `json:"unit_price" db:"unit_price"`
	Quantity  int       `json:"quantity" db:"quantity"`
	LineTotal int64     `json:"line_total" db:"line_total"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Order struct {
	ID                uuid.UUID `json:"id" db:"id"`
	UserID            uuid.UUID `json:"user_id" db:"user_id"`
	CheckoutSessionID string    `json:"checkout_session_id" db:"checkout_session_id"`
	PaymentIntentID   *string   `json:"payment_intent_id" db:"payment_intent_id"`
	Status            Status    `json:"status" db:"status"`
	Currency          string    `json:"currency" db:"currency"`
	Amount            int64     `json:"amount" db:"amount"`
	BillingAddress    *Address  `json:"billing_address,omitempty" db:"billing_address"`
	ShippingAddress   *Address  `json:"shipping_address,omitempty" db:"shipping_address"`
	Lines             []Line    `json:"lines" db:"-"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}
