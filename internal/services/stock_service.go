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

// StockServiceDeps bundles the collaborators StockService requires.
type StockServiceDeps struct {
	Stock     repositories.StockRepository
	Publisher events.Publisher
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

// StockService fronts the conditional stock mutations and translates storage
// failures into the service error taxonomy. Event publishing is best effort;
// a failed publish never fails the mutation that already committed.
type StockService struct {
	stock     repositories.StockRepository
	publisher events.Publisher
	clock     func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// NewStockService validates deps and constructs the service.
func NewStockService(deps StockServiceDeps) (*StockService, error) {
	if deps.Stock == nil {
		return nil, errors.New("stock service: stock repository is required")
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
	return &StockService{
		stock:     deps.Stock,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}, nil
}

// Reserve decrements stock for every line atomically. On success a
// stock.reserved event is emitted.
func (s *StockService) Reserve(ctx context.Context, lines []domain.CartLine) error {
	if err := translateStockError(s.stock.Reserve(ctx, lines)); err != nil {
		return err
	}
	s.publishLines(ctx, events.StockReserved, lines)
	return nil
}

// Release increments stock back for every line atomically. On success a
// stock.released event is emitted.
func (s *StockService) Release(ctx context.Context, lines []domain.CartLine) error {
	if err := translateStockError(s.stock.Release(ctx, lines)); err != nil {
		return err
	}
	s.publishLines(ctx, events.StockReleased, lines)
	return nil
}

// Adjust applies an administrative stock delta through the same transactional
// primitive the reservation path uses and returns the product afterwards.
func (s *StockService) Adjust(ctx context.Context, adj domain.StockAdjustment) (domain.Product, error) {
	if strings.TrimSpace(adj.ProductID) == "" {
		return domain.Product{}, &ValidationError{Field: "productId", Detail: "is required"}
	}
	if adj.Delta == 0 {
		return domain.Product{}, &ValidationError{Field: "delta", Detail: "must not be zero"}
	}

	product, err := s.stock.Adjust(ctx, adj)
	if err != nil {
		return domain.Product{}, translateStockError(err)
	}

	s.logger(ctx, "stock adjusted", map[string]any{
		"product_id": adj.ProductID,
		"size":       adj.Size,
		"delta":      adj.Delta,
		"reason":     adj.Reason,
	})
	return product, nil
}

type stockLinePayload struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

type stockEventPayload struct {
	Lines      []stockLinePayload `json:"lines"`
	OccurredAt time.Time          `json:"occurredAt"`
}

func (s *StockService) publishLines(ctx context.Context, event string, lines []domain.CartLine) {
	payload := stockEventPayload{OccurredAt: s.clock().UTC()}
	for _, line := range lines {
		size := line.Size
		if size == "" {
			size = domain.VariantSizeStandard
		}
		payload.Lines = append(payload.Lines, stockLinePayload{
			ProductID: line.ProductID,
			Size:      size,
			Quantity:  line.Quantity,
		})
	}
	if err := s.publisher.Publish(ctx, event, payload); err != nil {
		s.logger(ctx, "event publish failed", map[string]any{
			"event": event,
			"error": err.Error(),
		})
	}
}

// translateStockError maps repository stock failures onto the service error
// taxonomy, preserving line details.
func translateStockError(err error) error {
	if err == nil {
		return nil
	}
	var insufficient *repositories.InsufficientStockError
	if errors.As(err, &insufficient) {
		return &OutOfStockError{
			ProductID: insufficient.ProductID,
			Size:      insufficient.Size,
			Requested: insufficient.Requested,
			Available: insufficient.Available,
		}
	}
	var noVariant *repositories.VariantNotFoundError
	if errors.As(err, &noVariant) {
		return lineError(ErrVariantNotFound, noVariant.ProductID, noVariant.Size)
	}
	var missing *repositories.ProductNotFoundError
	if errors.As(err, &missing) {
		return lineError(ErrLineNotFound, missing.ProductID, "")
	}
	return err
}
