package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/poshakghar/api/internal/domain"
	"github.com/poshakghar/api/internal/platform/config"
	"github.com/poshakghar/api/internal/repositories"
	"github.com/poshakghar/api/internal/services"
)

// In-memory repositories backing the full router under test.

type memProductRepo struct {
	products map[string]domain.Product
}

func (m *memProductRepo) GetProduct(_ context.Context, id string) (domain.Product, error) {
	product, ok := m.products[id]
	if !ok {
		return domain.Product{}, &repositories.ProductNotFoundError{ProductID: id}
	}
	return product, nil
}

func (m *memProductRepo) ClearExpiredSale(context.Context, string) error { return nil }

type memCouponRepo struct {
	coupons []domain.Coupon
}

func (m *memCouponRepo) FindByCode(_ context.Context, code string) (domain.Coupon, error) {
	for _, c := range m.coupons {
		if c.Code == code {
			return c, nil
		}
	}
	return domain.Coupon{}, repositories.ErrNotFound
}

func (m *memCouponRepo) ListAutomatic(context.Context) ([]domain.Coupon, error) {
	var out []domain.Coupon
	for _, c := range m.coupons {
		if c.IsAutomatic {
			out = append(out, c)
		}
	}
	return out, nil
}

type memStockRepo struct {
	products *memProductRepo
}

func (m *memStockRepo) Reserve(_ context.Context, lines []domain.CartLine) error {
	for _, line := range lines {
		product := m.products.products[line.ProductID]
		size := line.Size
		if size == "" {
			size = domain.VariantSizeStandard
		}
		variant, ok := product.VariantFor(size)
		if !ok {
			return &repositories.VariantNotFoundError{ProductID: line.ProductID, Size: size}
		}
		if variant.Stock < line.Quantity {
			return &repositories.InsufficientStockError{
				ProductID: line.ProductID,
				Size:      size,
				Requested: line.Quantity,
				Available: variant.Stock,
			}
		}
	}
	for _, line := range lines {
		product := m.products.products[line.ProductID]
		for i := range product.Variants {
			if product.Variants[i].Size == line.Size {
				product.Variants[i].Stock -= line.Quantity
			}
		}
		m.products.products[line.ProductID] = product
	}
	return nil
}

func (m *memStockRepo) Release(context.Context, []domain.CartLine) error { return nil }

func (m *memStockRepo) Adjust(_ context.Context, adj domain.StockAdjustment) (domain.Product, error) {
	product, ok := m.products.products[adj.ProductID]
	if !ok {
		return domain.Product{}, &repositories.ProductNotFoundError{ProductID: adj.ProductID}
	}
	for i := range product.Variants {
		if product.Variants[i].Size == adj.Size {
			next := product.Variants[i].Stock + adj.Delta
			if next < 0 {
				return domain.Product{}, &repositories.InsufficientStockError{
					ProductID: adj.ProductID,
					Size:      adj.Size,
					Requested: -adj.Delta,
					Available: product.Variants[i].Stock,
				}
			}
			product.Variants[i].Stock = next
		}
	}
	m.products.products[adj.ProductID] = product
	return product, nil
}

type memOrderRepo struct {
	orders map[string]domain.Order
}

func (m *memOrderRepo) Insert(_ context.Context, order domain.Order) error {
	if _, exists := m.orders[order.ID]; exists {
		return repositories.ErrConflict
	}
	m.orders[order.ID] = order
	return nil
}

func (m *memOrderRepo) GetOrder(_ context.Context, id string) (domain.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return domain.Order{}, repositories.ErrNotFound
	}
	return order, nil
}

func (m *memOrderRepo) FindByIdempotencyKey(_ context.Context, key string) (domain.Order, error) {
	for _, order := range m.orders {
		if order.IdempotencyKey == key {
			return order, nil
		}
	}
	return domain.Order{}, repositories.ErrNotFound
}

func (m *memOrderRepo) UpdateStatus(_ context.Context, id string, mutate func(domain.Order) (domain.Order, error)) (domain.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return domain.Order{}, repositories.ErrNotFound
	}
	next, err := mutate(order)
	if err != nil {
		return domain.Order{}, err
	}
	m.orders[id] = next
	return next, nil
}

func (m *memOrderRepo) ListOrders(_ context.Context, filter repositories.OrderFilter, _ domain.Pagination) (domain.CursorPage[domain.Order], error) {
	var items []domain.Order
	for _, order := range m.orders {
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		items = append(items, order)
	}
	return domain.CursorPage[domain.Order]{Items: items}, nil
}

type memCounterRepo struct {
	sequence int64
}

func (m *memCounterRepo) NextOrderSequence(context.Context, int) (int64, error) {
	m.sequence++
	return m.sequence, nil
}

var handlerNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

type routerFixture struct {
	handler http.Handler
	orders  *memOrderRepo
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	productRepo := &memProductRepo{products: map[string]domain.Product{
		"p1": {
			ID:         "p1",
			Name:       "Linen Kurta",
			CategoryID: "kurta",
			Price:      1200,
			Variants:   []domain.Variant{{Size: "M", Stock: 5}, {Size: "L", Stock: 0}},
		},
	}}
	couponRepo := &memCouponRepo{coupons: []domain.Coupon{
		{
			ID:            "c1",
			Code:          "SAVE300",
			DiscountType:  domain.DiscountTypeFixed,
			DiscountValue: 300,
			ValidUntil:    handlerNow.Add(72 * time.Hour),
		},
	}}
	orderRepo := &memOrderRepo{orders: map[string]domain.Order{}}
	stockRepo := &memStockRepo{products: productRepo}
	counterRepo := &memCounterRepo{}

	clock := func() time.Time { return handlerNow }
	shipping := config.ShippingConfig{InsideFee: 80, OutsideFee: 150}

	pricing, err := services.NewPricingService(services.PricingServiceDeps{
		Products: productRepo,
		Shipping: shipping,
		Clock:    clock,
	})
	if err != nil {
		t.Fatalf("pricing service: %v", err)
	}
	discounts, err := services.NewDiscountEngine(services.DiscountEngineDeps{
		Coupons: couponRepo,
		Clock:   clock,
	})
	if err != nil {
		t.Fatalf("discount engine: %v", err)
	}
	stock, err := services.NewStockService(services.StockServiceDeps{Stock: stockRepo, Clock: clock})
	if err != nil {
		t.Fatalf("stock service: %v", err)
	}
	orders, err := services.NewOrderService(services.OrderServiceDeps{Orders: orderRepo, Clock: clock})
	if err != nil {
		t.Fatalf("order service: %v", err)
	}
	seq := 0
	checkout, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Pricing:     pricing,
		Discounts:   discounts,
		Stock:       stock,
		Orders:      orderRepo,
		Counters:    counterRepo,
		Clock:       clock,
		IDGenerator: func() string { seq++; return "order-" + string(rune('0'+seq)) },
	})
	if err != nil {
		t.Fatalf("checkout service: %v", err)
	}

	checkoutHandler, err := NewCheckoutHandler(checkout)
	if err != nil {
		t.Fatalf("checkout handler: %v", err)
	}
	ordersHandler, err := NewOrdersHandler(orders)
	if err != nil {
		t.Fatalf("orders handler: %v", err)
	}
	stockHandler, err := NewAdminStockHandler(stock)
	if err != nil {
		t.Fatalf("stock handler: %v", err)
	}

	handler, err := NewRouter(RouterDeps{
		Logger:   zap.NewNop(),
		Checkout: checkoutHandler,
		Orders:   ordersHandler,
		Stock:    stockHandler,
		Health:   NewHealthHandler(nil),
	})
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	return &routerFixture{handler: handler, orders: orderRepo}
}

func checkoutBody(couponCode string, quantity int) []byte {
	body := map[string]any{
		"lines": []map[string]any{
			{"productId": "p1", "size": "M", "quantity": quantity},
		},
		"address": map[string]any{
			"name":    "Anika Rahman",
			"phone":   "+8801712345678",
			"address": "12 Green Road",
			"city":    "Dhaka",
		},
		"shippingMethod": "outside",
	}
	if couponCode != "" {
		body["couponCode"] = couponCode
	}
	raw, _ := json.Marshal(body)
	return raw
}

func TestCheckoutEndpointPlacesOrder(t *testing.T) {
	fx := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/checkout/orders", bytes.NewReader(checkoutBody("SAVE300", 2)))
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var payload orderPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.OrderNumber != "PG-2026-000001" {
		t.Fatalf("orderNumber = %q, want PG-2026-000001", payload.OrderNumber)
	}
	// 2400 + 150 - 300.
	if payload.TotalAmount != 2250 {
		t.Fatalf("total = %d, want 2250", payload.TotalAmount)
	}
	if payload.Status != "pending" {
		t.Fatalf("status = %q, want pending", payload.Status)
	}
}

func TestCheckoutEndpointOutOfStock(t *testing.T) {
	fx := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/checkout/orders", bytes.NewReader(checkoutBody("", 99)))
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409; body = %s", rec.Code, rec.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["error"] != "insufficient_stock" {
		t.Fatalf("error = %v, want insufficient_stock", payload["error"])
	}
}

func TestCheckoutEndpointUnknownCoupon(t *testing.T) {
	fx := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/checkout/orders", bytes.NewReader(checkoutBody("NOPE", 1)))
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body = %s", rec.Code, rec.Body.String())
	}
}

func TestCheckoutEndpointMalformedBody(t *testing.T) {
	fx := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/checkout/orders", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTransitionEndpointRejectsIllegalChange(t *testing.T) {
	fx := newRouterFixture(t)
	fx.orders.orders["o1"] = domain.Order{ID: "o1", Status: domain.OrderStatusShipped}

	body, _ := json.Marshal(map[string]string{"status": "cancelled", "cancelReason": "customer_request"})
	req := httptest.NewRequest(http.MethodPost, "/orders/o1:transition", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409; body = %s", rec.Code, rec.Body.String())
	}
}

func TestTransitionEndpointShipsOrder(t *testing.T) {
	fx := newRouterFixture(t)
	fx.orders.orders["o1"] = domain.Order{ID: "o1", Status: domain.OrderStatusProcessing}

	body, _ := json.Marshal(map[string]string{"status": "shipped", "trackingCode": "TRK-9"})
	req := httptest.NewRequest(http.MethodPost, "/orders/o1:transition", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}
	var payload orderPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "shipped" || payload.TrackingCode != "TRK-9" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestGetOrderEndpointNotFound(t *testing.T) {
	fx := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/orders/ghost", nil)
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAdminStockAdjustEndpoint(t *testing.T) {
	fx := newRouterFixture(t)

	body, _ := json.Marshal(map[string]any{"size": "M", "delta": 3, "reason": "recount"})
	req := httptest.NewRequest(http.MethodPost, "/admin/stock/p1:adjust", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}
	var payload adjustStockResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	found := false
	for _, v := range payload.Variants {
		if v.Size == "M" && v.Stock == 8 {
			found = true
		}
	}
	if !found {
		t.Fatalf("variants = %+v, want size M at 8", payload.Variants)
	}
}

func TestHealthEndpoints(t *testing.T) {
	fx := newRouterFixture(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		fx.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, rec.Code)
		}
	}
}
