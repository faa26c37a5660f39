package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poshakghar/api/internal/domain"
	"github.com/poshakghar/api/internal/repositories"
)

type stubCouponRepo struct {
	findByCode    func(ctx context.Context, code string) (domain.Coupon, error)
	listAutomatic func(ctx context.Context) ([]domain.Coupon, error)
}

func (s *stubCouponRepo) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	if s.findByCode == nil {
		return domain.Coupon{}, repositories.ErrNotFound
	}
	return s.findByCode(ctx, code)
}

func (s *stubCouponRepo) ListAutomatic(ctx context.Context) ([]domain.Coupon, error) {
	if s.listAutomatic == nil {
		return nil, nil
	}
	return s.listAutomatic(ctx)
}

var discountNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func newDiscountEngine(t *testing.T, repo repositories.CouponRepository) *DiscountEngine {
	t.Helper()
	engine, err := NewDiscountEngine(DiscountEngineDeps{
		Coupons: repo,
		Clock:   fixedClock(discountNow),
	})
	if err != nil {
		t.Fatalf("NewDiscountEngine: %v", err)
	}
	return engine
}

func cartLines() []domain.ResolvedLine {
	return []domain.ResolvedLine{
		{ProductID: "p1", CategoryID: "kurta", Quantity: 2, UnitPrice: 600, Subtotal: 1200},
		{ProductID: "p2", CategoryID: "saree", Quantity: 1, UnitPrice: 800, Subtotal: 800},
	}
}

func TestEvaluateManualCodeWinsOverLargerAutomatic(t *testing.T) {
	repo := &stubCouponRepo{
		findByCode: func(_ context.Context, code string) (domain.Coupon, error) {
			return domain.Coupon{
				ID:            "c-manual",
				Code:          code,
				DiscountType:  domain.DiscountTypeFixed,
				DiscountValue: 100,
				ValidUntil:    discountNow.Add(48 * time.Hour),
			}, nil
		},
		listAutomatic: func(context.Context) ([]domain.Coupon, error) {
			t.Fatal("automatic promotions must not be consulted when a code is submitted")
			return nil, nil
		},
	}
	engine := newDiscountEngine(t, repo)

	discount, err := engine.Evaluate(context.Background(), cartLines(), "SAVE100")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if discount == nil || discount.Source != domain.DiscountSourceCode {
		t.Fatalf("discount = %+v, want manual code discount", discount)
	}
	if discount.Amount != 100 {
		t.Fatalf("amount = %d, want 100", discount.Amount)
	}
}

func TestEvaluateUnknownCode(t *testing.T) {
	engine := newDiscountEngine(t, &stubCouponRepo{})

	_, err := engine.Evaluate(context.Background(), cartLines(), "NOPE")
	if !errors.Is(err, ErrCouponInvalid) {
		t.Fatalf("err = %v, want ErrCouponInvalid", err)
	}
}

func TestEvaluateExpiredCode(t *testing.T) {
	repo := &stubCouponRepo{
		findByCode: func(_ context.Context, code string) (domain.Coupon, error) {
			return domain.Coupon{
				ID:            "c1",
				Code:          code,
				DiscountType:  domain.DiscountTypeFixed,
				DiscountValue: 100,
				ValidUntil:    discountNow.Add(-48 * time.Hour),
			}, nil
		},
	}
	engine := newDiscountEngine(t, repo)

	_, err := engine.Evaluate(context.Background(), cartLines(), "OLD")
	if !errors.Is(err, ErrCouponInvalid) {
		t.Fatalf("err = %v, want ErrCouponInvalid", err)
	}
}

func TestEvaluateCodeValidThroughEndOfExpiryDay(t *testing.T) {
	repo := &stubCouponRepo{
		findByCode: func(_ context.Context, code string) (domain.Coupon, error) {
			return domain.Coupon{
				ID:            "c1",
				Code:          code,
				DiscountType:  domain.DiscountTypeFixed,
				DiscountValue: 50,
				// Midnight of the current day; still valid until 23:59:59.
				ValidUntil: time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	engine := newDiscountEngine(t, repo)

	discount, err := engine.Evaluate(context.Background(), cartLines(), "TODAY")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if discount.Amount != 50 {
		t.Fatalf("amount = %d, want 50", discount.Amount)
	}
}

func TestEvaluateAutomaticCouponNotAddressableByCode(t *testing.T) {
	repo := &stubCouponRepo{
		findByCode: func(_ context.Context, code string) (domain.Coupon, error) {
			return domain.Coupon{
				ID:            "c-auto",
				Code:          code,
				IsAutomatic:   true,
				DiscountType:  domain.DiscountTypeFixed,
				DiscountValue: 100,
				ValidUntil:    discountNow.Add(48 * time.Hour),
			}, nil
		},
	}
	engine := newDiscountEngine(t, repo)

	_, err := engine.Evaluate(context.Background(), cartLines(), "AUTO")
	if !errors.Is(err, ErrCouponInvalid) {
		t.Fatalf("err = %v, want ErrCouponInvalid", err)
	}
}

func TestEvaluateMinSpendCountsOnlyScopedLines(t *testing.T) {
	repo := &stubCouponRepo{
		findByCode: func(_ context.Context, code string) (domain.Coupon, error) {
			return domain.Coupon{
				ID:            "c1",
				Code:          code,
				DiscountType:  domain.DiscountTypePercentage,
				DiscountValue: 10,
				MinSpend:      1000,
				CategoryIDs:   []string{"kurta"},
				ValidUntil:    discountNow.Add(48 * time.Hour),
			}, nil
		},
	}
	engine := newDiscountEngine(t, repo)

	// Scoped subtotal is 1200, which clears the threshold even though the
	// saree line is excluded. Ten percent applies to the scoped 1200 only.
	discount, err := engine.Evaluate(context.Background(), cartLines(), "KURTA10")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if discount.Amount != 120 {
		t.Fatalf("amount = %d, want 120", discount.Amount)
	}
}

func TestEvaluateMinSpendRejectsWhenScopedSubtotalTooLow(t *testing.T) {
	repo := &stubCouponRepo{
		findByCode: func(_ context.Context, code string) (domain.Coupon, error) {
			return domain.Coupon{
				ID:            "c1",
				Code:          code,
				DiscountType:  domain.DiscountTypePercentage,
				DiscountValue: 10,
				MinSpend:      1000,
				CategoryIDs:   []string{"saree"},
				ValidUntil:    discountNow.Add(48 * time.Hour),
			}, nil
		},
	}
	engine := newDiscountEngine(t, repo)

	// Cart total is 2000 but only 800 is in scope.
	_, err := engine.Evaluate(context.Background(), cartLines(), "SAREE10")
	if !errors.Is(err, ErrCouponInvalid) {
		t.Fatalf("err = %v, want ErrCouponInvalid", err)
	}
}

func TestEvaluateFixedDiscountCappedAtScopedSubtotal(t *testing.T) {
	repo := &stubCouponRepo{
		findByCode: func(_ context.Context, code string) (domain.Coupon, error) {
			return domain.Coupon{
				ID:            "c1",
				Code:          code,
				DiscountType:  domain.DiscountTypeFixed,
				DiscountValue: 5000,
				ValidUntil:    discountNow.Add(48 * time.Hour),
			}, nil
		},
	}
	engine := newDiscountEngine(t, repo)

	discount, err := engine.Evaluate(context.Background(), cartLines(), "BIG")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if discount.Amount != 2000 {
		t.Fatalf("amount = %d, want cap at 2000", discount.Amount)
	}
}

func TestEvaluateAutomaticPicksLargestAmount(t *testing.T) {
	repo := &stubCouponRepo{
		listAutomatic: func(context.Context) ([]domain.Coupon, error) {
			return []domain.Coupon{
				{ID: "a", IsAutomatic: true, DiscountType: domain.DiscountTypeFixed, DiscountValue: 100, ValidUntil: discountNow.Add(24 * time.Hour)},
				{ID: "b", IsAutomatic: true, DiscountType: domain.DiscountTypePercentage, DiscountValue: 10, ValidUntil: discountNow.Add(24 * time.Hour)},
			}, nil
		},
	}
	engine := newDiscountEngine(t, repo)

	discount, err := engine.Evaluate(context.Background(), cartLines(), "")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// Ten percent of 2000 beats the fixed 100.
	if discount == nil || discount.CouponID != "b" || discount.Amount != 200 {
		t.Fatalf("discount = %+v, want coupon b for 200", discount)
	}
	if discount.Source != domain.DiscountSourceAutomatic {
		t.Fatalf("source = %s, want automatic", discount.Source)
	}
}

func TestEvaluateAutomaticTieBreaksByExpiryThenID(t *testing.T) {
	repo := &stubCouponRepo{
		listAutomatic: func(context.Context) ([]domain.Coupon, error) {
			return []domain.Coupon{
				{ID: "z", IsAutomatic: true, DiscountType: domain.DiscountTypeFixed, DiscountValue: 100, ValidUntil: discountNow.Add(72 * time.Hour)},
				{ID: "m", IsAutomatic: true, DiscountType: domain.DiscountTypeFixed, DiscountValue: 100, ValidUntil: discountNow.Add(24 * time.Hour)},
				{ID: "a", IsAutomatic: true, DiscountType: domain.DiscountTypeFixed, DiscountValue: 100, ValidUntil: discountNow.Add(72 * time.Hour)},
			}, nil
		},
	}
	engine := newDiscountEngine(t, repo)

	discount, err := engine.Evaluate(context.Background(), cartLines(), "")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// Same amount everywhere: the soonest-expiring coupon wins.
	if discount.CouponID != "m" {
		t.Fatalf("coupon = %s, want m", discount.CouponID)
	}
}

func TestEvaluateAutomaticIDTieBreak(t *testing.T) {
	expiry := discountNow.Add(24 * time.Hour)
	repo := &stubCouponRepo{
		listAutomatic: func(context.Context) ([]domain.Coupon, error) {
			return []domain.Coupon{
				{ID: "beta", IsAutomatic: true, DiscountType: domain.DiscountTypeFixed, DiscountValue: 100, ValidUntil: expiry},
				{ID: "alpha", IsAutomatic: true, DiscountType: domain.DiscountTypeFixed, DiscountValue: 100, ValidUntil: expiry},
			}, nil
		},
	}
	engine := newDiscountEngine(t, repo)

	discount, err := engine.Evaluate(context.Background(), cartLines(), "")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if discount.CouponID != "alpha" {
		t.Fatalf("coupon = %s, want alpha", discount.CouponID)
	}
}

func TestEvaluateNoDiscountIsNotAnError(t *testing.T) {
	repo := &stubCouponRepo{
		listAutomatic: func(context.Context) ([]domain.Coupon, error) {
			return []domain.Coupon{
				{ID: "expired", IsAutomatic: true, DiscountType: domain.DiscountTypeFixed, DiscountValue: 100, ValidUntil: discountNow.Add(-48 * time.Hour)},
			}, nil
		},
	}
	engine := newDiscountEngine(t, repo)

	discount, err := engine.Evaluate(context.Background(), cartLines(), "")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if discount != nil {
		t.Fatalf("discount = %+v, want nil", discount)
	}
}

func TestEvaluatePercentageRoundsHalfUp(t *testing.T) {
	repo := &stubCouponRepo{
		findByCode: func(_ context.Context, code string) (domain.Coupon, error) {
			return domain.Coupon{
				ID:            "c1",
				Code:          code,
				DiscountType:  domain.DiscountTypePercentage,
				DiscountValue: 10,
				ValidUntil:    discountNow.Add(48 * time.Hour),
			}, nil
		},
	}
	engine := newDiscountEngine(t, repo)

	lines := []domain.ResolvedLine{
		{ProductID: "p1", Quantity: 1, UnitPrice: 999, Subtotal: 999},
	}
	discount, err := engine.Evaluate(context.Background(), lines, "TEN")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// 99.9 rounds up to 100.
	if discount.Amount != 100 {
		t.Fatalf("amount = %d, want 100", discount.Amount)
	}
}
