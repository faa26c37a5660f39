package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage wraps a result page together with the token for the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// RangeQuery represents inclusive range filters for timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// Variant is a (size, stock) pair under a product; the unit of inventory
// reservation. Products migrated from the legacy flat-stock model carry a
// single implicit variant sized VariantSizeStandard.
type Variant struct {
	Size    string
	SKU     string
	Barcode string
	Stock   int
}

// VariantSizeStandard is the pseudo-size assigned to legacy products that
// predate per-size variants.
const VariantSizeStandard = "STD"

// Product is the catalog snapshot consumed by the pricing and reservation
// paths. It is read-only to this service except for stock counters and the
// lazy clearing of expired sale fields.
type Product struct {
	ID            string
	Name          string
	CategoryID    string
	Price         int64
	DiscountPrice *int64
	SaleStartsAt  *time.Time
	SaleEndsAt    *time.Time
	// Stock is the aggregate across variants, maintained inside the same
	// transaction that mutates any variant. Used only for catalog display.
	Stock     int
	Variants  []Variant
	UpdatedAt time.Time
}

// VariantFor returns the variant matching size. Legacy products without
// variants expose their flat stock as the implicit STD variant.
func (p Product) VariantFor(size string) (Variant, bool) {
	if len(p.Variants) == 0 {
		if size == "" || size == VariantSizeStandard {
			return Variant{Size: VariantSizeStandard, Stock: p.Stock}, true
		}
		return Variant{}, false
	}
	for _, v := range p.Variants {
		if v.Size == size {
			return v, true
		}
	}
	return Variant{}, false
}

// DiscountType distinguishes percentage coupons from fixed-amount coupons.
type DiscountType string

const (
	// DiscountTypePercentage discounts a percentage of the scoped subtotal.
	DiscountTypePercentage DiscountType = "percentage"
	// DiscountTypeFixed discounts a fixed amount, capped at the scoped subtotal.
	DiscountTypeFixed DiscountType = "fixed"
)

// Coupon is a promotion definition. Manual coupons carry a non-empty Code;
// automatic coupons are evaluated against every cart and are never matched by
// user-entered text.
type Coupon struct {
	ID            string
	Code          string
	Description   string
	DiscountType  DiscountType
	DiscountValue int64
	// ValidUntil is inclusive up to the end of its calendar day (UTC).
	ValidUntil  time.Time
	MinSpend    int64
	MinQuantity int
	IsAutomatic bool
	CategoryIDs []string
	ProductIDs  []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ExpiresAfter reports whether the coupon is still valid at now, treating
// ValidUntil as inclusive through the end of its day.
func (c Coupon) ExpiresAfter(now time.Time) bool {
	if c.ValidUntil.IsZero() {
		return false
	}
	end := EndOfDay(c.ValidUntil)
	return !now.After(end)
}

// HasScope reports whether the coupon restricts the lines it applies to.
// Empty scope means the coupon applies to the entire cart.
func (c Coupon) HasScope() bool {
	return len(c.CategoryIDs) > 0 || len(c.ProductIDs) > 0
}

// InScope reports whether a line with the given product and category falls
// inside the coupon's scope.
func (c Coupon) InScope(productID, categoryID string) bool {
	if !c.HasScope() {
		return true
	}
	for _, id := range c.ProductIDs {
		if id == productID {
			return true
		}
	}
	for _, id := range c.CategoryIDs {
		if id != "" && id == categoryID {
			return true
		}
	}
	return false
}

// CartLine is a caller-supplied order line. Only identity and quantity are
// trusted; prices are always re-derived server-side.
type CartLine struct {
	ProductID string
	Size      string
	Quantity  int
}

// ResolvedLine is a cart line after authoritative unit-price lookup. It is
// the only valid input to discount evaluation and total computation.
type ResolvedLine struct {
	ProductID   string
	ProductName string
	CategoryID  string
	Size        string
	SKU         string
	Barcode     string
	Quantity    int
	UnitPrice   int64
	Subtotal    int64
	// SaleExpired marks lines whose stored discount price was ignored
	// because the sale window had already closed.
	SaleExpired bool
}

// ShippingMethod selects the delivery zone used for the flat fee lookup.
type ShippingMethod string

const (
	// ShippingInside is delivery inside the home city zone.
	ShippingInside ShippingMethod = "inside"
	// ShippingOutside is delivery outside the home city zone.
	ShippingOutside ShippingMethod = "outside"
)

// DiscountSource records whether a discount came from a user-entered code or
// an automatic promotion.
type DiscountSource string

const (
	// DiscountSourceCode marks a discount applied via a manual coupon code.
	DiscountSourceCode DiscountSource = "code"
	// DiscountSourceAutomatic marks a discount applied without a code.
	DiscountSourceAutomatic DiscountSource = "automatic"
)

// AppliedDiscount is the single winning discount for an order, if any.
type AppliedDiscount struct {
	Source   DiscountSource
	CouponID string
	Code     string
	Label    string
	Amount   int64
}

// Totals is the server-trusted money breakdown for an order. It is the only
// value the order store is permitted to persist; caller-supplied totals are
// discarded.
type Totals struct {
	Subtotal    int64
	ShippingFee int64
	Discount    *AppliedDiscount
	// Total = Subtotal + ShippingFee - discount amount, floored at zero.
	Total int64
	Lines []ResolvedLine
}

// DiscountAmount returns the applied discount amount, zero when none applied.
func (t Totals) DiscountAmount() int64 {
	if t.Discount == nil {
		return 0
	}
	return t.Discount.Amount
}

// OrderStatus enumerates lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending is the state every committed order starts in.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing indicates fulfillment has picked the order up.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped indicates the order has been handed to a courier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the customer received the order.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled is terminal and reachable only before shipment.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// CancelReason is the closed vocabulary accepted when cancelling an order.
type CancelReason string

const (
	// CancelReasonCustomerRequest records a customer-initiated cancellation.
	CancelReasonCustomerRequest CancelReason = "customer_request"
	// CancelReasonStockUnavailable records cancellation due to stock issues.
	CancelReasonStockUnavailable CancelReason = "stock_unavailable"
	// CancelReasonDuplicate records cancellation of a duplicate order.
	CancelReasonDuplicate CancelReason = "duplicate"
	// CancelReasonFraudSuspected records cancellation pending fraud review.
	CancelReasonFraudSuspected CancelReason = "fraud_suspected"
	// CancelReasonOther records any cancellation outside the named categories.
	CancelReasonOther CancelReason = "other"
)

// ValidCancelReason reports whether reason belongs to the closed set.
func ValidCancelReason(reason CancelReason) bool {
	switch reason {
	case CancelReasonCustomerRequest, CancelReasonStockUnavailable,
		CancelReasonDuplicate, CancelReasonFraudSuspected, CancelReasonOther:
		return true
	}
	return false
}

// OrderLine is the immutable snapshot of a cart line captured at commit time.
type OrderLine struct {
	ProductID   string
	ProductName string
	Size        string
	SKU         string
	Barcode     string
	Quantity    int
	UnitPrice   int64
	Subtotal    int64
}

// ShippingAddress is the destination captured on the order.
type ShippingAddress struct {
	Name     string
	Phone    string
	Address  string
	City     string
	District string
	Notes    string
}

// Order is created once at commit time and mutated thereafter only through
// the lifecycle store's transition API.
type Order struct {
	ID             string
	OrderNumber    string
	Lines          []OrderLine
	Address        ShippingAddress
	ShippingMethod ShippingMethod
	ShippingFee    int64
	// CouponCode is empty when an automatic discount applied without a code;
	// DiscountAmount still records what was deducted.
	CouponCode     string
	DiscountLabel  string
	DiscountAmount int64
	Subtotal       int64
	TotalAmount    int64
	Status         OrderStatus
	CancelReason   CancelReason
	TrackingCode   string
	IdempotencyKey string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
	CancelledAt    *time.Time
}

// StockAdjustment is an administrative delta applied to one variant through
// the same transactional primitive the reservation path uses.
type StockAdjustment struct {
	ProductID string
	Size      string
	Delta     int
	Reason    string
}

// EndOfDay returns the last nanosecond of t's calendar day in UTC.
func EndOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
}
