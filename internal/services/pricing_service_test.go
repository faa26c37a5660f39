package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poshakghar/api/internal/domain"
	"github.com/poshakghar/api/internal/platform/config"
	"github.com/poshakghar/api/internal/repositories"
)

type stubProductRepo struct {
	getProduct       func(ctx context.Context, id string) (domain.Product, error)
	clearExpiredSale func(ctx context.Context, id string) error
}

func (s *stubProductRepo) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if s.getProduct == nil {
		return domain.Product{}, repositories.ErrNotFound
	}
	return s.getProduct(ctx, id)
}

func (s *stubProductRepo) ClearExpiredSale(ctx context.Context, id string) error {
	if s.clearExpiredSale == nil {
		return nil
	}
	return s.clearExpiredSale(ctx, id)
}

func testShipping() config.ShippingConfig {
	return config.ShippingConfig{InsideFee: 80, OutsideFee: 150}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newPricingService(t *testing.T, repo repositories.ProductRepository, now time.Time) *PricingService {
	t.Helper()
	svc, err := NewPricingService(PricingServiceDeps{
		Products: repo,
		Shipping: testShipping(),
		Clock:    fixedClock(now),
	})
	if err != nil {
		t.Fatalf("NewPricingService: %v", err)
	}
	return svc
}

func ptrInt64(v int64) *int64        { return &v }
func ptrTime(t time.Time) *time.Time { return &t }

func TestResolveLinesUsesDiscountPriceDuringSale(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	repo := &stubProductRepo{
		getProduct: func(_ context.Context, id string) (domain.Product, error) {
			return domain.Product{
				ID:            id,
				Name:          "Linen Kurta",
				CategoryID:    "kurta",
				Price:         1500,
				DiscountPrice: ptrInt64(1200),
				SaleStartsAt:  ptrTime(now.Add(-24 * time.Hour)),
				SaleEndsAt:    ptrTime(now.Add(24 * time.Hour)),
				Variants:      []domain.Variant{{Size: "M", Stock: 5}},
			}, nil
		},
	}
	svc := newPricingService(t, repo, now)

	resolved, err := svc.ResolveLines(context.Background(), []domain.CartLine{
		{ProductID: "p1", Size: "M", Quantity: 2},
	})
	if err != nil {
		t.Fatalf("ResolveLines: %v", err)
	}
	if resolved[0].UnitPrice != 1200 {
		t.Fatalf("unit price = %d, want 1200", resolved[0].UnitPrice)
	}
	if resolved[0].Subtotal != 2400 {
		t.Fatalf("subtotal = %d, want 2400", resolved[0].Subtotal)
	}
	if resolved[0].SaleExpired {
		t.Fatal("line unexpectedly marked sale expired")
	}
}

func TestResolveLinesExpiredSaleFallsBackAndClears(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	var cleared []string
	repo := &stubProductRepo{
		getProduct: func(_ context.Context, id string) (domain.Product, error) {
			return domain.Product{
				ID:            id,
				Price:         1500,
				DiscountPrice: ptrInt64(1200),
				SaleEndsAt:    ptrTime(now.Add(-time.Hour)),
				Variants:      []domain.Variant{{Size: "M", Stock: 5}},
			}, nil
		},
		clearExpiredSale: func(_ context.Context, id string) error {
			cleared = append(cleared, id)
			return nil
		},
	}
	svc := newPricingService(t, repo, now)

	resolved, err := svc.ResolveLines(context.Background(), []domain.CartLine{
		{ProductID: "p1", Size: "M", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("ResolveLines: %v", err)
	}
	if resolved[0].UnitPrice != 1500 {
		t.Fatalf("unit price = %d, want regular 1500", resolved[0].UnitPrice)
	}
	if !resolved[0].SaleExpired {
		t.Fatal("expected line to be marked sale expired")
	}
	if len(cleared) != 1 || cleared[0] != "p1" {
		t.Fatalf("cleared = %v, want [p1]", cleared)
	}
}

func TestResolveLinesClearFailureDoesNotFailResolution(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	repo := &stubProductRepo{
		getProduct: func(_ context.Context, id string) (domain.Product, error) {
			return domain.Product{
				ID:            id,
				Price:         1000,
				DiscountPrice: ptrInt64(800),
				SaleEndsAt:    ptrTime(now.Add(-time.Hour)),
				Variants:      []domain.Variant{{Size: "L", Stock: 1}},
			}, nil
		},
		clearExpiredSale: func(context.Context, string) error {
			return errors.New("backend down")
		},
	}
	svc := newPricingService(t, repo, now)

	resolved, err := svc.ResolveLines(context.Background(), []domain.CartLine{
		{ProductID: "p1", Size: "L", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("ResolveLines: %v", err)
	}
	if resolved[0].UnitPrice != 1000 {
		t.Fatalf("unit price = %d, want 1000", resolved[0].UnitPrice)
	}
}

func TestResolveLinesSaleNotStartedUsesRegularPrice(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	repo := &stubProductRepo{
		getProduct: func(_ context.Context, id string) (domain.Product, error) {
			return domain.Product{
				ID:            id,
				Price:         900,
				DiscountPrice: ptrInt64(700),
				SaleStartsAt:  ptrTime(now.Add(time.Hour)),
				Variants:      []domain.Variant{{Size: "S", Stock: 3}},
			}, nil
		},
		clearExpiredSale: func(context.Context, string) error {
			t.Fatal("clear must not run for a sale that has not started")
			return nil
		},
	}
	svc := newPricingService(t, repo, now)

	resolved, err := svc.ResolveLines(context.Background(), []domain.CartLine{
		{ProductID: "p1", Size: "S", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("ResolveLines: %v", err)
	}
	if resolved[0].UnitPrice != 900 {
		t.Fatalf("unit price = %d, want 900", resolved[0].UnitPrice)
	}
	if resolved[0].SaleExpired {
		t.Fatal("upcoming sale must not be flagged as expired")
	}
}

func TestResolveLinesUnknownProduct(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	repo := &stubProductRepo{
		getProduct: func(context.Context, string) (domain.Product, error) {
			return domain.Product{}, repositories.ErrNotFound
		},
	}
	svc := newPricingService(t, repo, now)

	_, err := svc.ResolveLines(context.Background(), []domain.CartLine{
		{ProductID: "ghost", Quantity: 1},
	})
	if !errors.Is(err, ErrLineNotFound) {
		t.Fatalf("err = %v, want ErrLineNotFound", err)
	}
}

func TestResolveLinesUnknownVariant(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	repo := &stubProductRepo{
		getProduct: func(_ context.Context, id string) (domain.Product, error) {
			return domain.Product{
				ID:       id,
				Price:    500,
				Variants: []domain.Variant{{Size: "M", Stock: 2}},
			}, nil
		},
	}
	svc := newPricingService(t, repo, now)

	_, err := svc.ResolveLines(context.Background(), []domain.CartLine{
		{ProductID: "p1", Size: "XXL", Quantity: 1},
	})
	if !errors.Is(err, ErrVariantNotFound) {
		t.Fatalf("err = %v, want ErrVariantNotFound", err)
	}
}

func TestResolveLinesLegacyProductUsesStandardVariant(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	repo := &stubProductRepo{
		getProduct: func(_ context.Context, id string) (domain.Product, error) {
			return domain.Product{ID: id, Price: 650, Stock: 7}, nil
		},
	}
	svc := newPricingService(t, repo, now)

	resolved, err := svc.ResolveLines(context.Background(), []domain.CartLine{
		{ProductID: "legacy", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("ResolveLines: %v", err)
	}
	if resolved[0].Size != domain.VariantSizeStandard {
		t.Fatalf("size = %q, want %q", resolved[0].Size, domain.VariantSizeStandard)
	}
}

func TestComputeTotals(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	svc := newPricingService(t, &stubProductRepo{}, now)

	lines := []domain.ResolvedLine{
		{ProductID: "p1", Quantity: 2, UnitPrice: 1200, Subtotal: 2400},
	}
	discount := &domain.AppliedDiscount{Source: domain.DiscountSourceCode, Amount: 300}

	totals, err := svc.ComputeTotals(lines, domain.ShippingOutside, discount)
	if err != nil {
		t.Fatalf("ComputeTotals: %v", err)
	}
	if totals.Subtotal != 2400 {
		t.Fatalf("subtotal = %d, want 2400", totals.Subtotal)
	}
	if totals.ShippingFee != 150 {
		t.Fatalf("shipping fee = %d, want 150", totals.ShippingFee)
	}
	if totals.Total != 2250 {
		t.Fatalf("total = %d, want 2250", totals.Total)
	}
}

func TestComputeTotalsFloorsAtZero(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	svc := newPricingService(t, &stubProductRepo{}, now)

	lines := []domain.ResolvedLine{{ProductID: "p1", Quantity: 1, UnitPrice: 100, Subtotal: 100}}
	discount := &domain.AppliedDiscount{Source: domain.DiscountSourceAutomatic, Amount: 500}

	totals, err := svc.ComputeTotals(lines, domain.ShippingInside, discount)
	if err != nil {
		t.Fatalf("ComputeTotals: %v", err)
	}
	if totals.Total != 0 {
		t.Fatalf("total = %d, want 0", totals.Total)
	}
}

func TestComputeTotalsRejectsUnknownZone(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	svc := newPricingService(t, &stubProductRepo{}, now)

	lines := []domain.ResolvedLine{{ProductID: "p1", Quantity: 1, UnitPrice: 100, Subtotal: 100}}
	if _, err := svc.ComputeTotals(lines, domain.ShippingMethod("overseas"), nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}
