package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/poshakghar/api/internal/domain"
	"github.com/poshakghar/api/internal/platform/events"
	"github.com/poshakghar/api/internal/repositories"
)

// orderStateTransitions enumerates the forward-only lifecycle. Cancellation
// is reachable only before shipment; delivered and cancelled are terminal.
var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusProcessing, domain.OrderStatusCancelled},
	domain.OrderStatusProcessing: {domain.OrderStatusShipped, domain.OrderStatusCancelled},
	domain.OrderStatusShipped:    {domain.OrderStatusDelivered},
	domain.OrderStatusDelivered:  {},
	domain.OrderStatusCancelled:  {},
}

func canTransition(from, to domain.OrderStatus) bool {
	for _, allowed := range orderStateTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func knownStatus(status domain.OrderStatus) bool {
	_, ok := orderStateTransitions[status]
	return ok
}

// OrderServiceDeps bundles the collaborators OrderService requires.
type OrderServiceDeps struct {
	Orders    repositories.OrderRepository
	Publisher events.Publisher
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

// OrderService reads committed orders and drives their lifecycle. It never
// creates orders; commits belong to the checkout path.
type OrderService struct {
	orders    repositories.OrderRepository
	publisher events.Publisher
	clock     func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderService validates deps and constructs the service.
func NewOrderService(deps OrderServiceDeps) (*OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
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
	return &OrderService{
		orders:    deps.Orders,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}, nil
}

// GetOrder returns the order with the given ID.
func (s *OrderService) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Order{}, &ValidationError{Field: "orderId", Detail: "is required"}
	}
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return domain.Order{}, ErrOrderNotFound
		}
		return domain.Order{}, err
	}
	return order, nil
}

// ListOrders returns a page of orders, optionally filtered by status and
// creation time range.
func (s *OrderService) ListOrders(ctx context.Context, filter repositories.OrderFilter, page domain.Pagination) (domain.CursorPage[domain.Order], error) {
	if filter.Status != "" && !knownStatus(filter.Status) {
		return domain.CursorPage[domain.Order]{}, &ValidationError{Field: "status", Detail: "unknown status"}
	}
	return s.orders.ListOrders(ctx, filter, page)
}

// TransitionInput describes a requested lifecycle change.
type TransitionInput struct {
	Status domain.OrderStatus
	// CancelReason is required when Status is cancelled, ignored otherwise.
	CancelReason domain.CancelReason
	// TrackingCode may accompany the shipped transition.
	TrackingCode string
}

// Transition applies a lifecycle change, enforcing the transition table and
// stamping the matching lifecycle timestamp. On success an
// order.status.changed event is emitted.
func (s *OrderService) Transition(ctx context.Context, id string, input TransitionInput) (domain.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Order{}, &ValidationError{Field: "orderId", Detail: "is required"}
	}
	if !knownStatus(input.Status) {
		return domain.Order{}, &ValidationError{Field: "status", Detail: "unknown status"}
	}
	if input.Status == domain.OrderStatusCancelled && !domain.ValidCancelReason(input.CancelReason) {
		return domain.Order{}, &ValidationError{Field: "cancelReason", Detail: "unknown cancel reason"}
	}

	var previous domain.OrderStatus
	now := s.clock().UTC()

	updated, err := s.orders.UpdateStatus(ctx, id, func(order domain.Order) (domain.Order, error) {
		if !canTransition(order.Status, input.Status) {
			return domain.Order{}, &TransitionError{From: string(order.Status), To: string(input.Status)}
		}
		previous = order.Status
		order.Status = input.Status
		order.UpdatedAt = now

		switch input.Status {
		case domain.OrderStatusShipped:
			shipped := now
			order.ShippedAt = &shipped
			if code := strings.TrimSpace(input.TrackingCode); code != "" {
				order.TrackingCode = code
			}
		case domain.OrderStatusDelivered:
			delivered := now
			order.DeliveredAt = &delivered
		case domain.OrderStatusCancelled:
			cancelled := now
			order.CancelledAt = &cancelled
			order.CancelReason = input.CancelReason
		}
		return order, nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return domain.Order{}, ErrOrderNotFound
		}
		return domain.Order{}, err
	}

	s.logger(ctx, "order status changed", map[string]any{
		"order_id": updated.ID,
		"from":     string(previous),
		"to":       string(updated.Status),
	})
	s.publishStatusChanged(ctx, updated, previous)
	return updated, nil
}

type statusChangedPayload struct {
	OrderID      string    `json:"orderId"`
	OrderNumber  string    `json:"orderNumber"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	CancelReason string    `json:"cancelReason,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

func (s *OrderService) publishStatusChanged(ctx context.Context, order domain.Order, previous domain.OrderStatus) {
	payload := statusChangedPayload{
		OrderID:      order.ID,
		OrderNumber:  order.OrderNumber,
		From:         string(previous),
		To:           string(order.Status),
		CancelReason: string(order.CancelReason),
		OccurredAt:   s.clock().UTC(),
	}
	if err := s.publisher.Publish(ctx, events.OrderStatusChanged, payload); err != nil {
		s.logger(ctx, "event publish failed", map[string]any{
			"event":    events.OrderStatusChanged,
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}
}
