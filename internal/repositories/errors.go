package repositories

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across repository implementations. Services branch
// on these with errors.Is and translate them into their own error taxonomy.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("repositories: not found")
	// ErrConflict indicates a uniqueness or precondition violation.
	ErrConflict = errors.New("repositories: conflict")
	// ErrUnavailable indicates a transient backend failure worth retrying.
	ErrUnavailable = errors.New("repositories: backend unavailable")
)

// InsufficientStockError reports that a conditional stock decrement failed
// because the variant held less stock than requested. The whole reservation
// is rolled back when any line raises it.
type InsufficientStockError struct {
	ProductID string
	Size      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("repositories: insufficient stock for %s size %s: requested %d, available %d",
		e.ProductID, e.Size, e.Requested, e.Available)
}

// VariantNotFoundError reports that a product exists but carries no variant
// for the requested size.
type VariantNotFoundError struct {
	ProductID string
	Size      string
}

func (e *VariantNotFoundError) Error() string {
	return fmt.Sprintf("repositories: product %s has no variant for size %q", e.ProductID, e.Size)
}

func (e *VariantNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ProductNotFoundError reports that a cart line referenced a product that
// does not exist in the catalog.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("repositories: product %s not found", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
