package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/poshakghar/api/internal/domain"
	"github.com/poshakghar/api/internal/platform/events"
	"github.com/poshakghar/api/internal/repositories"
)

// PricingResolver derives authoritative prices and totals for a cart.
type PricingResolver interface {
	ResolveLines(ctx context.Context, lines []domain.CartLine) ([]domain.ResolvedLine, error)
	ComputeTotals(lines []domain.ResolvedLine, method domain.ShippingMethod, discount *domain.AppliedDiscount) (domain.Totals, error)
}

// DiscountEvaluator selects the single winning discount for a cart.
type DiscountEvaluator interface {
	Evaluate(ctx context.Context, lines []domain.ResolvedLine, code string) (*domain.AppliedDiscount, error)
}

// StockReserver performs the all-or-nothing reservation and its compensating
// release.
type StockReserver interface {
	Reserve(ctx context.Context, lines []domain.CartLine) error
	Release(ctx context.Context, lines []domain.CartLine) error
}

// CheckoutServiceDeps bundles the collaborators CheckoutService requires.
type CheckoutServiceDeps struct {
	Pricing   PricingResolver
	Discounts DiscountEvaluator
	Stock     StockReserver
	Orders    repositories.OrderRepository
	Counters  repositories.CounterRepository
	Publisher events.Publisher
	Clock     func() time.Time
	// IDGenerator mints order document IDs.
	IDGenerator func() string
	// CommitRetries is how many extra insert attempts follow a failed order
	// write before the reservation is rolled back.
	CommitRetries int
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

// CheckoutService orchestrates order placement: price resolution, discount
// evaluation, totals, stock reservation, and the order commit with its
// compensating rollback.
type CheckoutService struct {
	pricing       PricingResolver
	discounts     DiscountEvaluator
	stock         StockReserver
	orders        repositories.OrderRepository
	counters      repositories.CounterRepository
	publisher     events.Publisher
	clock         func() time.Time
	idGenerator   func() string
	commitRetries int
	logger        func(ctx context.Context, event string, fields map[string]any)
}

// NewCheckoutService validates deps and constructs the service.
func NewCheckoutService(deps CheckoutServiceDeps) (*CheckoutService, error) {
	if deps.Pricing == nil {
		return nil, errors.New("checkout service: pricing resolver is required")
	}
	if deps.Discounts == nil {
		return nil, errors.New("checkout service: discount evaluator is required")
	}
	if deps.Stock == nil {
		return nil, errors.New("checkout service: stock reserver is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("checkout service: counter repository is required")
	}
	if deps.IDGenerator == nil {
		return nil, errors.New("checkout service: id generator is required")
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	retries := deps.CommitRetries
	if retries < 0 {
		retries = 0
	}
	return &CheckoutService{
		pricing:       deps.Pricing,
		discounts:     deps.Discounts,
		stock:         deps.Stock,
		orders:        deps.Orders,
		counters:      deps.Counters,
		publisher:     publisher,
		clock:         clock,
		idGenerator:   deps.IDGenerator,
		commitRetries: retries,
		logger:        logger,
	}, nil
}

// PlaceOrderInput is the untrusted checkout request. Prices and totals are
// deliberately absent; the server derives all money amounts.
type PlaceOrderInput struct {
	Lines          []domain.CartLine
	Address        domain.ShippingAddress
	ShippingMethod domain.ShippingMethod
	CouponCode     string
	IdempotencyKey string
}

// PlaceOrder runs the full placement pipeline and returns the committed
// order. Reservation happens only after pricing and discounts succeed; a
// failed order write rolls the reservation back before the error surfaces.
func (s *CheckoutService) PlaceOrder(ctx context.Context, input PlaceOrderInput) (domain.Order, error) {
	if err := validatePlaceOrder(input); err != nil {
		return domain.Order{}, err
	}

	if key := strings.TrimSpace(input.IdempotencyKey); key != "" {
		existing, err := s.orders.FindByIdempotencyKey(ctx, key)
		if err == nil {
			s.logger(ctx, "checkout replay detected", map[string]any{
				"order_id":        existing.ID,
				"idempotency_key": key,
			})
			return existing, nil
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return domain.Order{}, err
		}
	}

	resolved, err := s.pricing.ResolveLines(ctx, input.Lines)
	if err != nil {
		return domain.Order{}, err
	}

	discount, err := s.discounts.Evaluate(ctx, resolved, input.CouponCode)
	if err != nil {
		return domain.Order{}, err
	}

	totals, err := s.pricing.ComputeTotals(resolved, input.ShippingMethod, discount)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.clock().UTC()
	sequence, err := s.counters.NextOrderSequence(ctx, now.Year())
	if err != nil {
		return domain.Order{}, err
	}

	if err := s.stock.Reserve(ctx, input.Lines); err != nil {
		return domain.Order{}, err
	}

	order := buildOrder(s.idGenerator(), orderNumber(now.Year(), sequence), input, totals, now)
	if err := s.insertWithRetry(ctx, order); err != nil {
		s.rollbackReservation(ctx, order.ID, input.Lines)
		return domain.Order{}, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	s.logger(ctx, "order committed", map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"total":        order.TotalAmount,
	})
	s.publishOrderCreated(ctx, order)
	return order, nil
}

func validatePlaceOrder(input PlaceOrderInput) error {
	if len(input.Lines) == 0 {
		return &ValidationError{Field: "lines", Detail: "must not be empty"}
	}
	for _, line := range input.Lines {
		if strings.TrimSpace(line.ProductID) == "" {
			return &ValidationError{Field: "lines.productId", Detail: "is required"}
		}
		if line.Quantity <= 0 {
			return &ValidationError{Field: "lines.quantity", Detail: "must be positive"}
		}
	}
	switch {
	case strings.TrimSpace(input.Address.Name) == "":
		return &ValidationError{Field: "address.name", Detail: "is required"}
	case strings.TrimSpace(input.Address.Phone) == "":
		return &ValidationError{Field: "address.phone", Detail: "is required"}
	case strings.TrimSpace(input.Address.Address) == "":
		return &ValidationError{Field: "address.address", Detail: "is required"}
	case strings.TrimSpace(input.Address.City) == "":
		return &ValidationError{Field: "address.city", Detail: "is required"}
	}
	return nil
}

func orderNumber(year int, sequence int64) string {
	return fmt.Sprintf("PG-%d-%06d", year, sequence)
}

func buildOrder(id, number string, input PlaceOrderInput, totals domain.Totals, now time.Time) domain.Order {
	lines := make([]domain.OrderLine, len(totals.Lines))
	for i, l := range totals.Lines {
		lines[i] = domain.OrderLine{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Size:        l.Size,
			SKU:         l.SKU,
			Barcode:     l.Barcode,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Subtotal:    l.Subtotal,
		}
	}

	order := domain.Order{
		ID:             id,
		OrderNumber:    number,
		Lines:          lines,
		Address:        input.Address,
		ShippingMethod: input.ShippingMethod,
		ShippingFee:    totals.ShippingFee,
		Subtotal:       totals.Subtotal,
		TotalAmount:    totals.Total,
		Status:         domain.OrderStatusPending,
		IdempotencyKey: strings.TrimSpace(input.IdempotencyKey),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if totals.Discount != nil {
		order.CouponCode = totals.Discount.Code
		order.DiscountLabel = totals.Discount.Label
		order.DiscountAmount = totals.Discount.Amount
	}
	return order
}

func (s *CheckoutService) insertWithRetry(ctx context.Context, order domain.Order) error {
	var lastErr error
	for attempt := 0; attempt <= s.commitRetries; attempt++ {
		lastErr = s.orders.Insert(ctx, order)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, repositories.ErrConflict) {
			// The document already exists; retrying the same ID cannot help.
			return lastErr
		}
		s.logger(ctx, "order insert failed", map[string]any{
			"order_id": order.ID,
			"attempt":  attempt + 1,
			"error":    lastErr.Error(),
		})
	}
	return lastErr
}

// rollbackReservation restores the stock a failed commit had reserved. It
// runs detached from the request's cancellation so an abandoned checkout
// still releases its reservation. A failed release leaves stock
// under-counted until an operator reconciles it, so it is logged with the
// full line set.
func (s *CheckoutService) rollbackReservation(ctx context.Context, orderID string, lines []domain.CartLine) {
	ctx = context.WithoutCancel(ctx)
	if err := s.stock.Release(ctx, lines); err != nil {
		summary := make([]map[string]any, 0, len(lines))
		for _, line := range lines {
			summary = append(summary, map[string]any{
				"product_id": line.ProductID,
				"size":       line.Size,
				"quantity":   line.Quantity,
			})
		}
		s.logger(ctx, "reservation rollback failed", map[string]any{
			"order_id": orderID,
			"lines":    summary,
			"error":    err.Error(),
		})
	}
}

type orderCreatedPayload struct {
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	Subtotal    int64     `json:"subtotal"`
	ShippingFee int64     `json:"shippingFee"`
	Discount    int64     `json:"discount"`
	Total       int64     `json:"total"`
	OccurredAt  time.Time `json:"occurredAt"`
}

func (s *CheckoutService) publishOrderCreated(ctx context.Context, order domain.Order) {
	payload := orderCreatedPayload{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Subtotal:    order.Subtotal,
		ShippingFee: order.ShippingFee,
		Discount:    order.DiscountAmount,
		Total:       order.TotalAmount,
		OccurredAt:  s.clock().UTC(),
	}
	if err := s.publisher.Publish(ctx, events.OrderCreated, payload); err != nil {
		s.logger(ctx, "event publish failed", map[string]any{
			"event":    events.OrderCreated,
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}
}
