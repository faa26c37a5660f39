package services

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the services. Handlers map these onto HTTP
// status codes; detail types below carry the specifics and unwrap to them.
var (
	// ErrValidation indicates malformed or incomplete caller input.
	ErrValidation = errors.New("invalid input")
	// ErrLineNotFound indicates a cart line referenced an unknown product.
	ErrLineNotFound = errors.New("product not found")
	// ErrVariantNotFound indicates a cart line referenced a size the product
	// does not carry.
	ErrVariantNotFound = errors.New("variant not found")
	// ErrOutOfStock indicates a reservation failed because at least one line
	// exceeded the available stock. No stock was modified.
	ErrOutOfStock = errors.New("insufficient stock")
	// ErrCouponInvalid indicates an explicitly submitted coupon code could
	// not be applied. Automatic promotions never raise it.
	ErrCouponInvalid = errors.New("coupon invalid")
	// ErrOrderNotFound indicates the referenced order does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidTransition indicates a disallowed order status change.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrPersistenceFailure indicates the order could not be persisted after
	// a successful reservation; the reservation was rolled back.
	ErrPersistenceFailure = errors.New("order persistence failed")
)

// LineError identifies the cart line an error refers to.
type LineError struct {
	ProductID string
	Size      string
	err       error
}

func (e *LineError) Error() string {
	if e.Size != "" {
		return fmt.Sprintf("%v: product %s size %s", e.err, e.ProductID, e.Size)
	}
	return fmt.Sprintf("%v: product %s", e.err, e.ProductID)
}

func (e *LineError) Unwrap() error { return e.err }

func lineError(sentinel error, productID, size string) *LineError {
	return &LineError{ProductID: productID, Size: size, err: sentinel}
}

// OutOfStockError reports the line that could not be reserved and how much
// stock was actually available.
type OutOfStockError struct {
	ProductID string
	Size      string
	Requested int
	Available int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("insufficient stock: product %s size %s requested %d available %d",
		e.ProductID, e.Size, e.Requested, e.Available)
}

func (e *OutOfStockError) Unwrap() error { return ErrOutOfStock }

// CouponInvalidError carries the reason a submitted code was rejected.
type CouponInvalidError struct {
	Code   string
	Reason string
}

func (e *CouponInvalidError) Error() string {
	return fmt.Sprintf("coupon %q invalid: %s", e.Code, e.Reason)
}

func (e *CouponInvalidError) Unwrap() error { return ErrCouponInvalid }

// TransitionError records the rejected status change.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ValidationError reports the first invalid input field.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Detail)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
