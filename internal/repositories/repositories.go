// Package repositories defines the persistence interfaces the services
// depend on. Concrete implementations live in subpackages named after the
// backing store.
package repositories

import (
	"context"
	"time"

	"github.com/poshakghar/api/internal/domain"
)

// ProductRepository reads catalog documents for pricing and reservation.
type ProductRepository interface {
	// GetProduct returns the catalog snapshot for id, including variants and
	// sale fields. Returns ErrNotFound when the product does not exist.
	GetProduct(ctx context.Context, id string) (domain.Product, error)

	// ClearExpiredSale removes the discount price and sale window from a
	// product whose sale has ended. Callers treat failures as non-fatal.
	ClearExpiredSale(ctx context.Context, id string) error
}

// CouponRepository reads promotion definitions.
type CouponRepository interface {
	// FindByCode returns the manual coupon matching code exactly.
	// Returns ErrNotFound when no coupon carries the code.
	FindByCode(ctx context.Context, code string) (domain.Coupon, error)

	// ListAutomatic returns every coupon flagged for automatic evaluation,
	// regardless of validity; the caller filters by expiry and scope.
	ListAutomatic(ctx context.Context) ([]domain.Coupon, error)
}

// StockRepository mutates variant stock counters. All multi-line operations
// are atomic: either every line applies or none does.
type StockRepository interface {
	// Reserve conditionally decrements stock for every line in one
	// transaction. Any line with insufficient stock aborts the whole batch
	// with an InsufficientStockError.
	Reserve(ctx context.Context, lines []domain.CartLine) error

	// Release increments stock back for every line in one transaction.
	// Used to compensate a reservation whose order failed to persist.
	Release(ctx context.Context, lines []domain.CartLine) error

	// Adjust applies an administrative delta to one variant and returns the
	// product after the adjustment. Negative deltas that would drive stock
	// below zero fail with an InsufficientStockError.
	Adjust(ctx context.Context, adj domain.StockAdjustment) (domain.Product, error)
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	Status       domain.OrderStatus
	CreatedRange domain.RangeQuery[time.Time]
}

// OrderRepository persists committed orders and their lifecycle updates.
type OrderRepository interface {
	// Insert writes a new order document. Fails with ErrConflict when an
	// order with the same ID already exists.
	Insert(ctx context.Context, order domain.Order) error

	// GetOrder returns the order with the given ID.
	GetOrder(ctx context.Context, id string) (domain.Order, error)

	// FindByIdempotencyKey returns the order previously committed under key.
	// Returns ErrNotFound when the key has not been used.
	FindByIdempotencyKey(ctx context.Context, key string) (domain.Order, error)

	// UpdateStatus persists a lifecycle transition. The mutate callback runs
	// inside the transaction against the freshly read order and returns the
	// updated document to write.
	UpdateStatus(ctx context.Context, id string, mutate func(domain.Order) (domain.Order, error)) (domain.Order, error)

	// ListOrders returns a page of orders ordered by creation time descending.
	ListOrders(ctx context.Context, filter OrderFilter, page domain.Pagination) (domain.CursorPage[domain.Order], error)
}

// CounterRepository hands out monotonically increasing order sequence numbers
// scoped per year.
type CounterRepository interface {
	// NextOrderSequence atomically increments and returns the sequence for
	// the given year, starting at 1.
	NextOrderSequence(ctx context.Context, year int) (int64, error)
}
