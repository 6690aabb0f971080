package model

import (
	"time"

	"github.com/google/uuid"
)

// Product is a catalog entry identified by its barcode. It is created once by
// the resolution pipeline and never mutated afterwards.
type Product struct {
	ID        uuid.UUID `json:"id"`
	Barcode   string    `json:"barcode"`
	Name      string    `json:"name"`
	Picture   Picture   `json:"picture"`
	CreatedAt time.Time `json:"created_at"`
}
