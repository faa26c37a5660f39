package domain

// Amounts are integer minor units throughout; the service never handles
// floating-point money.

// PercentOf returns pct percent of amount, rounded half up. pct is a whole
// percentage in (0,100]; amount must be non-negative.
func PercentOf(amount, pct int64) int64 {
	if amount <= 0 || pct <= 0 {
		return 0
	}
	return (amount*pct + 50) / 100
}

// CapDiscount limits a fixed discount to the subtotal it applies to so a
// coupon can never be worth more than the items in its scope.
func CapDiscount(value, scopedSubtotal int64) int64 {
	if value <= 0 || scopedSubtotal <= 0 {
		return 0
	}
	if value > scopedSubtotal {
		return scopedSubtotal
	}
	return value
}

// FloorZero clamps a computed total at zero: no order is ever payable-negative.
func FloorZero(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
