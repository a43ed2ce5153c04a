package catalog

import "time"

// Product is the catalog entry as this service sees it. The catalog
// write-side lives elsewhere; here products are read for snapshots and
// their stock counter is decremented on fulfillment.
type Product struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	UnitPrice int64     `json:"unit_price" db:"unit_price"` // minor currency units
	ImagePath string    `json:"image_path" db:"image_path"`
	Stock     int       `json:"stock" db:"stock"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
