package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/poshakghar/api/internal/domain"
	"github.com/poshakghar/api/internal/repositories"
)

// DiscountEngineDeps bundles the collaborators DiscountEngine requires.
type DiscountEngineDeps struct {
	Coupons repositories.CouponRepository
	Clock   func() time.Time
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

// DiscountEngine selects the single discount applied to an order. A manual
// code, when submitted, wins outright and suppresses automatic evaluation;
// otherwise the best eligible automatic promotion applies.
type DiscountEngine struct {
	coupons repositories.CouponRepository
	clock   func() time.Time
	logger  func(ctx context.Context, event string, fields map[string]any)
}

// NewDiscountEngine validates deps and constructs the engine.
func NewDiscountEngine(deps DiscountEngineDeps) (*DiscountEngine, error) {
	if deps.Coupons == nil {
		return nil, errors.New("discount engine: coupon repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &DiscountEngine{coupons: deps.Coupons, clock: clock, logger: logger}, nil
}

// Evaluate returns the winning discount for the resolved lines, or nil when
// no discount applies. A submitted code that cannot be applied fails with a
// CouponInvalidError; an order with no code never fails here, it just gets
// no discount.
func (e *DiscountEngine) Evaluate(ctx context.Context, lines []domain.ResolvedLine, code string) (*domain.AppliedDiscount, error) {
	// Codes are stored upper-cased; user input is normalised the same way.
	code = strings.ToUpper(strings.TrimSpace(code))
	now := e.clock().UTC()

	if code != "" {
		return e.evaluateCode(ctx, lines, code, now)
	}
	return e.evaluateAutomatic(ctx, lines, now)
}

func (e *DiscountEngine) evaluateCode(ctx context.Context, lines []domain.ResolvedLine, code string, now time.Time) (*domain.AppliedDiscount, error) {
	coupon, err := e.coupons.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, &CouponInvalidError{Code: code, Reason: "unknown code"}
		}
		return nil, err
	}
	if coupon.IsAutomatic {
		// Automatic promotions are never addressable by code.
		return nil, &CouponInvalidError{Code: code, Reason: "unknown code"}
	}
	if !coupon.ExpiresAfter(now) {
		return nil, &CouponInvalidError{Code: code, Reason: "expired"}
	}

	amount, reason := couponAmount(coupon, lines)
	if reason != "" {
		return nil, &CouponInvalidError{Code: code, Reason: reason}
	}

	return &domain.AppliedDiscount{
		Source:   domain.DiscountSourceCode,
		CouponID: coupon.ID,
		Code:     coupon.Code,
		Label:    couponLabel(coupon),
		Amount:   amount,
	}, nil
}

func (e *DiscountEngine) evaluateAutomatic(ctx context.Context, lines []domain.ResolvedLine, now time.Time) (*domain.AppliedDiscount, error) {
	coupons, err := e.coupons.ListAutomatic(ctx)
	if err != nil {
		return nil, err
	}

	var best *domain.Coupon
	var bestAmount int64
	for i := range coupons {
		coupon := coupons[i]
		if !coupon.ExpiresAfter(now) {
			continue
		}
		amount, reason := couponAmount(coupon, lines)
		if reason != "" || amount <= 0 {
			continue
		}
		if best == nil || betterAutomatic(coupon, amount, *best, bestAmount) {
			best = &coupons[i]
			bestAmount = amount
		}
	}
	if best == nil {
		return nil, nil
	}

	e.logger(ctx, "automatic discount selected", map[string]any{
		"coupon_id": best.ID,
		"amount":    bestAmount,
	})
	return &domain.AppliedDiscount{
		Source:   domain.DiscountSourceAutomatic,
		CouponID: best.ID,
		Label:    couponLabel(*best),
		Amount:   bestAmount,
	}, nil
}

// betterAutomatic implements the deterministic tie-break for competing
// automatic promotions: larger amount first, then earlier expiry, then the
// lexicographically smallest coupon ID.
func betterAutomatic(candidate domain.Coupon, candidateAmount int64, current domain.Coupon, currentAmount int64) bool {
	if candidateAmount != currentAmount {
		return candidateAmount > currentAmount
	}
	candidateEnd := domain.EndOfDay(candidate.ValidUntil)
	currentEnd := domain.EndOfDay(current.ValidUntil)
	if !candidateEnd.Equal(currentEnd) {
		return candidateEnd.Before(currentEnd)
	}
	return candidate.ID < current.ID
}

// couponAmount computes the discount a coupon yields against the lines it
// scopes to. An empty reason means the coupon is applicable. Threshold checks
// count only the scoped lines, never the whole cart.
func couponAmount(coupon domain.Coupon, lines []domain.ResolvedLine) (int64, string) {
	var scopedSubtotal int64
	var scopedQuantity int
	for _, line := range lines {
		if coupon.InScope(line.ProductID, line.CategoryID) {
			scopedSubtotal += line.Subtotal
			scopedQuantity += line.Quantity
		}
	}
	if scopedSubtotal <= 0 {
		return 0, "no eligible items in cart"
	}
	if coupon.MinSpend > 0 && scopedSubtotal < coupon.MinSpend {
		return 0, "minimum spend not met"
	}
	if coupon.MinQuantity > 0 && scopedQuantity < coupon.MinQuantity {
		return 0, "minimum quantity not met"
	}

	switch coupon.DiscountType {
	case domain.DiscountTypePercentage:
		return domain.PercentOf(scopedSubtotal, coupon.DiscountValue), ""
	case domain.DiscountTypeFixed:
		return domain.CapDiscount(coupon.DiscountValue, scopedSubtotal), ""
	}
	return 0, "unsupported discount type"
}

func couponLabel(coupon domain.Coupon) string {
	if coupon.Description != "" {
		return coupon.Description
	}
	if coupon.Code != "" {
		return coupon.Code
	}
	return coupon.ID
}
