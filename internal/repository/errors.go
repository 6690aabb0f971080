package repository

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateBarcode is returned when a product with the same barcode
	// already exists.
	ErrDuplicateBarcode = errors.New("duplicate barcode")
)
