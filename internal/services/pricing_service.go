package services

import (
	"context"
	"errors"
	"time"

	"github.com/poshakghar/api/internal/domain"
	"github.com/poshakghar/api/internal/platform/config"
	"github.com/poshakghar/api/internal/repositories"
)

// PricingServiceDeps bundles the collaborators PricingService requires.
type PricingServiceDeps struct {
	Products repositories.ProductRepository
	Shipping config.ShippingConfig
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

// PricingService derives authoritative unit prices and money totals. Caller
// supplied prices are never consulted; the catalog is the only price source.
type PricingService struct {
	products repositories.ProductRepository
	shipping config.ShippingConfig
	clock    func() time.Time
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewPricingService validates deps and constructs the service.
func NewPricingService(deps PricingServiceDeps) (*PricingService, error) {
	if deps.Products == nil {
		return nil, errors.New("pricing service: product repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &PricingService{
		products: deps.Products,
		shipping: deps.Shipping,
		clock:    clock,
		logger:   logger,
	}, nil
}

// ResolveLines loads each line's product, verifies the variant exists, and
// computes the effective unit price under the sale window rules. Lines whose
// stored sale has expired fall back to the regular price and trigger a best
// effort clear of the stale sale fields.
func (s *PricingService) ResolveLines(ctx context.Context, lines []domain.CartLine) ([]domain.ResolvedLine, error) {
	if len(lines) == 0 {
		return nil, &ValidationError{Field: "lines", Detail: "must not be empty"}
	}

	now := s.clock().UTC()
	cache := make(map[string]domain.Product)
	resolved := make([]domain.ResolvedLine, 0, len(lines))

	for _, line := range lines {
		if line.ProductID == "" {
			return nil, &ValidationError{Field: "lines.productId", Detail: "is required"}
		}
		if line.Quantity <= 0 {
			return nil, &ValidationError{Field: "lines.quantity", Detail: "must be positive"}
		}

		product, ok := cache[line.ProductID]
		if !ok {
			var err error
			product, err = s.products.GetProduct(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					return nil, lineError(ErrLineNotFound, line.ProductID, "")
				}
				return nil, err
			}
			cache[line.ProductID] = product
		}

		size := line.Size
		if size == "" {
			size = domain.VariantSizeStandard
		}
		variant, found := product.VariantFor(size)
		if !found {
			return nil, lineError(ErrVariantNotFound, line.ProductID, size)
		}

		unitPrice, saleExpired := ResolveUnitPrice(product, now)
		if saleExpired {
			s.clearExpiredSale(ctx, product.ID)
		}

		resolved = append(resolved, domain.ResolvedLine{
			ProductID:   product.ID,
			ProductName: product.Name,
			CategoryID:  product.CategoryID,
			Size:        variant.Size,
			SKU:         variant.SKU,
			Barcode:     variant.Barcode,
			Quantity:    line.Quantity,
			UnitPrice:   unitPrice,
			Subtotal:    unitPrice * int64(line.Quantity),
			SaleExpired: saleExpired,
		})
	}
	return resolved, nil
}

// ResolveUnitPrice returns the effective unit price at now and whether the
// stored discount was ignored because its sale window has closed. A discount
// with no window at all is treated as permanently active.
func ResolveUnitPrice(product domain.Product, now time.Time) (price int64, saleExpired bool) {
	if product.DiscountPrice == nil || *product.DiscountPrice <= 0 || *product.DiscountPrice >= product.Price {
		return product.Price, false
	}
	if product.SaleStartsAt != nil && now.Before(product.SaleStartsAt.UTC()) {
		// Sale has not started yet; not stale, just inactive.
		return product.Price, false
	}
	if product.SaleEndsAt != nil && now.After(product.SaleEndsAt.UTC()) {
		return product.Price, true
	}
	return *product.DiscountPrice, false
}

// ComputeTotals assembles the money breakdown from resolved lines, the
// shipping zone, and an optional winning discount. The grand total is floored
// at zero; a discount can never push an order negative.
func (s *PricingService) ComputeTotals(lines []domain.ResolvedLine, method domain.ShippingMethod, discount *domain.AppliedDiscount) (domain.Totals, error) {
	if len(lines) == 0 {
		return domain.Totals{}, &ValidationError{Field: "lines", Detail: "must not be empty"}
	}
	fee, ok := s.shipping.FeeFor(string(method))
	if !ok {
		return domain.Totals{}, &ValidationError{Field: "shippingMethod", Detail: "must be inside or outside"}
	}

	var subtotal int64
	for _, line := range lines {
		subtotal += line.Subtotal
	}

	totals := domain.Totals{
		Subtotal:    subtotal,
		ShippingFee: fee,
		Discount:    discount,
		Lines:       lines,
	}
	totals.Total = domain.FloorZero(subtotal + fee - totals.DiscountAmount())
	return totals, nil
}

func (s *PricingService) clearExpiredSale(ctx context.Context, productID string) {
	if err := s.products.ClearExpiredSale(ctx, productID); err != nil {
		s.logger(ctx, "expired sale clear failed", map[string]any{
			"product_id": productID,
			"error":      err.Error(),
		})
		return
	}
	s.logger(ctx, "expired sale cleared", map[string]any{"product_id": productID})
}
