package firestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/poshakghar/api/internal/domain"
	platform "github.com/poshakghar/api/internal/platform/firestore"
	"github.com/poshakghar/api/internal/repositories"
)

type orderLineDoc struct {
	ProductID   string `firestore:"productId"`
	ProductName string `firestore:"productName"`
	Size        string `firestore:"size"`
	SKU         string `firestore:"sku,omitempty"`
	Barcode     string `firestore:"barcode,omitempty"`
	Quantity    int    `firestore:"quantity"`
	UnitPrice   int64  `firestore:"unitPrice"`
	Subtotal    int64  `firestore:"subtotal"`
}

type addressDoc struct {
	Name     string `firestore:"name"`
	Phone    string `firestore:"phone"`
	Address  string `firestore:"address"`
	City     string `firestore:"city"`
	District string `firestore:"district,omitempty"`
	Notes    string `firestore:"notes,omitempty"`
}

type orderDoc struct {
	OrderNumber    string         `firestore:"orderNumber"`
	Lines          []orderLineDoc `firestore:"lines"`
	Address        addressDoc     `firestore:"address"`
	ShippingMethod string         `firestore:"shippingMethod"`
	ShippingFee    int64          `firestore:"shippingFee"`
	CouponCode     string         `firestore:"couponCode,omitempty"`
	DiscountLabel  string         `firestore:"discountLabel,omitempty"`
	DiscountAmount int64          `firestore:"discountAmount"`
	Subtotal       int64          `firestore:"subtotal"`
	TotalAmount    int64          `firestore:"totalAmount"`
	Status         string         `firestore:"status"`
	CancelReason   string         `firestore:"cancelReason,omitempty"`
	TrackingCode   string         `firestore:"trackingCode,omitempty"`
	IdempotencyKey string         `firestore:"idempotencyKey,omitempty"`
	CreatedAt      time.Time      `firestore:"createdAt"`
	UpdatedAt      time.Time      `firestore:"updatedAt"`
	ShippedAt      *time.Time     `firestore:"shippedAt"`
	DeliveredAt    *time.Time     `firestore:"deliveredAt"`
	CancelledAt    *time.Time     `firestore:"cancelledAt"`
}

func encodeOrder(order domain.Order) (map[string]any, error) {
	if strings.TrimSpace(order.OrderNumber) == "" {
		return nil, fmt.Errorf("firestore: order %s has no order number", order.ID)
	}

	lines := make([]orderLineDoc, len(order.Lines))
	for i, l := range order.Lines {
		lines[i] = orderLineDoc{
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

	doc := orderDoc{
		OrderNumber: order.OrderNumber,
		Lines:       lines,
		Address: addressDoc{
			Name:     order.Address.Name,
			Phone:    order.Address.Phone,
			Address:  order.Address.Address,
			City:     order.Address.City,
			District: order.Address.District,
			Notes:    order.Address.Notes,
		},
		ShippingMethod: string(order.ShippingMethod),
		ShippingFee:    order.ShippingFee,
		CouponCode:     order.CouponCode,
		DiscountLabel:  order.DiscountLabel,
		DiscountAmount: order.DiscountAmount,
		Subtotal:       order.Subtotal,
		TotalAmount:    order.TotalAmount,
		Status:         string(order.Status),
		CancelReason:   string(order.CancelReason),
		TrackingCode:   order.TrackingCode,
		IdempotencyKey: order.IdempotencyKey,
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
		ShippedAt:      order.ShippedAt,
		DeliveredAt:    order.DeliveredAt,
		CancelledAt:    order.CancelledAt,
	}

	return map[string]any{
		"orderNumber":    doc.OrderNumber,
		"lines":          doc.Lines,
		"address":        doc.Address,
		"shippingMethod": doc.ShippingMethod,
		"shippingFee":    doc.ShippingFee,
		"couponCode":     doc.CouponCode,
		"discountLabel":  doc.DiscountLabel,
		"discountAmount": doc.DiscountAmount,
		"subtotal":       doc.Subtotal,
		"totalAmount":    doc.TotalAmount,
		"status":         doc.Status,
		"cancelReason":   doc.CancelReason,
		"trackingCode":   doc.TrackingCode,
		"idempotencyKey": doc.IdempotencyKey,
		"createdAt":      doc.CreatedAt,
		"updatedAt":      doc.UpdatedAt,
		"shippedAt":      doc.ShippedAt,
		"deliveredAt":    doc.DeliveredAt,
		"cancelledAt":    doc.CancelledAt,
	}, nil
}

func decodeOrder(snap *firestore.DocumentSnapshot) (domain.Order, error) {
	var doc orderDoc
	if err := snap.DataTo(&doc); err != nil {
		return domain.Order{}, err
	}

	order := domain.Order{
		ID:             snap.Ref.ID,
		OrderNumber:    doc.OrderNumber,
		ShippingMethod: domain.ShippingMethod(doc.ShippingMethod),
		ShippingFee:    doc.ShippingFee,
		CouponCode:     doc.CouponCode,
		DiscountLabel:  doc.DiscountLabel,
		DiscountAmount: doc.DiscountAmount,
		Subtotal:       doc.Subtotal,
		TotalAmount:    doc.TotalAmount,
		Status:         domain.OrderStatus(doc.Status),
		CancelReason:   domain.CancelReason(doc.CancelReason),
		TrackingCode:   doc.TrackingCode,
		IdempotencyKey: doc.IdempotencyKey,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
		ShippedAt:      doc.ShippedAt,
		DeliveredAt:    doc.DeliveredAt,
		CancelledAt:    doc.CancelledAt,
		Address: domain.ShippingAddress{
			Name:     doc.Address.Name,
			Phone:    doc.Address.Phone,
			Address:  doc.Address.Address,
			City:     doc.Address.City,
			District: doc.Address.District,
			Notes:    doc.Address.Notes,
		},
	}
	for _, l := range doc.Lines {
		order.Lines = append(order.Lines, domain.OrderLine{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Size:        l.Size,
			SKU:         l.SKU,
			Barcode:     l.Barcode,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Subtotal:    l.Subtotal,
		})
	}
	return order, nil
}

// OrderRepository persists order documents in the orders collection.
type OrderRepository struct {
	base *platform.BaseRepository[domain.Order]
}

// NewOrderRepository constructs an OrderRepository on the shared provider.
func NewOrderRepository(provider *platform.Provider) (*OrderRepository, error) {
	base, err := platform.NewBaseRepository(provider, collectionOrders, encodeOrder, decodeOrder)
	if err != nil {
		return nil, err
	}
	return &OrderRepository{base: base}, nil
}

// Insert creates the order document, failing when the ID is already taken.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	err := r.base.RunTransaction(ctx, func(txCtx context.Context, tx *firestore.Transaction) error {
		return r.base.CreateTx(txCtx, tx, order.ID, order)
	})
	return translateError(err)
}

// GetOrder returns the order with the given ID.
func (r *OrderRepository) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	order, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Order{}, translateError(err)
	}
	return order, nil
}

// FindByIdempotencyKey returns the order previously committed under key.
func (r *OrderRepository) FindByIdempotencyKey(ctx context.Context, key string) (domain.Order, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.Order{}, fmt.Errorf("%w: empty idempotency key", repositories.ErrNotFound)
	}

	col, err := r.base.Collection(ctx)
	if err != nil {
		return domain.Order{}, translateError(err)
	}

	iter := col.Where("idempotencyKey", "==", key).Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return domain.Order{}, fmt.Errorf("%w: idempotency key", repositories.ErrNotFound)
	}
	if err != nil {
		return domain.Order{}, translateError(platform.ClassifyError(err))
	}
	return r.base.Decode(snap)
}

// UpdateStatus reads the order inside a transaction, applies mutate, and
// writes the result. The mutate callback enforces the transition rules.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, mutate func(domain.Order) (domain.Order, error)) (domain.Order, error) {
	var updated domain.Order
	err := r.base.RunTransaction(ctx, func(txCtx context.Context, tx *firestore.Transaction) error {
		order, err := r.base.GetTx(txCtx, tx, id)
		if err != nil {
			return err
		}
		next, err := mutate(order)
		if err != nil {
			return err
		}
		if err := r.base.SetTx(txCtx, tx, id, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		// Errors raised by the mutate callback are not Firestore-classified
		// and pass through translateError unchanged.
		return domain.Order{}, translateError(err)
	}
	return updated, nil
}

// ListOrders returns a page of orders ordered by creation time descending.
func (r *OrderRepository) ListOrders(ctx context.Context, filter repositories.OrderFilter, page domain.Pagination) (domain.CursorPage[domain.Order], error) {
	var empty domain.CursorPage[domain.Order]

	col, err := r.base.Collection(ctx)
	if err != nil {
		return empty, translateError(err)
	}

	query := col.Query
	if filter.Status != "" {
		query = query.Where("status", "==", string(filter.Status))
	}
	if filter.CreatedRange.From != nil {
		query = query.Where("createdAt", ">=", filter.CreatedRange.From.UTC())
	}
	if filter.CreatedRange.To != nil {
		query = query.Where("createdAt", "<=", filter.CreatedRange.To.UTC())
	}
	query = query.
		OrderBy("createdAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Desc)

	cursor, err := decodePageToken(page.PageToken)
	if err != nil {
		return empty, err
	}
	if !cursor.CreatedAt.IsZero() {
		query = query.StartAfter(cursor.CreatedAt, cursor.ID)
	}

	pageSize := clampPageSize(page.PageSize)
	iter := query.Limit(pageSize + 1).Documents(ctx)
	defer iter.Stop()

	var orders []domain.Order
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return empty, translateError(platform.ClassifyError(err))
		}
		order, err := r.base.Decode(snap)
		if err != nil {
			return empty, err
		}
		orders = append(orders, order)
		if len(orders) > pageSize {
			break
		}
	}

	result := domain.CursorPage[domain.Order]{Items: orders}
	if len(orders) > pageSize {
		result.Items = orders[:pageSize]
		last := result.Items[pageSize-1]
		result.NextPageToken = encodePageToken(pageCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return result, nil
}
