package cart

import (
	"time"

	"github.com/gofrs/uuid"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusOrdered   Status = "ordered"
	StatusAbandoned Status = "abandoned"
)

func (s Status) String() string {
	return string(s)
}

// Line is one product entry in a cart. Name, image and unit price are
// snapshots taken when the line is first created, never refreshed from
// the catalog afterwards.
type Line struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CartID    uuid.UUID `json:"cart_id" db:"cart_id"`
	ProductID int64     `json:"product_id" db:"product_id"`
	Name      string    `json:"name" db:"name"`
	ImagePath string    `json:"image_path" db:"image_path"`
	UnitPrice int64     `json:"unit_price" db:"unit_price"` // minor currency units
	Quantity  int       `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Cart struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Status    Status    `json:"status" db:"status"`
	Currency  string    `json:"currency" db:"currency"`
	Subtotal  int64     `json:"subtotal" db:"subtotal"`
	Total     int64     `json:"total" db:"total"`
	Lines     []Line    `json:"lines" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// LineInput is a product snapshot plus quantity, the unit handed to the
// repository when a line is created or merged.
type LineInput struct {
	ProductID int64
	Name      string
	ImagePath string
	UnitPrice int64
	Quantity  int
}

// SyncItem is one entry of a client-held guest cart submitted for merge.
type SyncItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}
