package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/poshakghar/api/internal/platform/observability"
)

// RouterDeps bundles everything the router mounts.
type RouterDeps struct {
	Logger    *zap.Logger
	ProjectID string
	Checkout  *CheckoutHandler
	Orders    *OrdersHandler
	Stock     *AdminStockHandler
	Health    *HealthHandler
}

// NewRouter assembles the chi router with the shared middleware stack and all
// route groups.
func NewRouter(deps RouterDeps) (http.Handler, error) {
	if deps.Checkout == nil || deps.Orders == nil || deps.Stock == nil {
		return nil, errors.New("handlers: all route handlers are required")
	}
	if deps.Health == nil {
		deps.Health = NewHealthHandler(nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TraceMiddleware(deps.ProjectID))
	r.Use(observability.InjectLoggerMiddleware(deps.Logger))
	r.Use(observability.RequestLoggerMiddleware())
	r.Use(observability.RecoveryMiddleware(deps.Logger))

	r.Get("/healthz", deps.Health.Live)
	r.Get("/readyz", deps.Health.Ready)

	r.Route("/checkout", func(r chi.Router) {
		r.Post("/orders", deps.Checkout.PlaceOrder)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", deps.Orders.List)
		r.Get("/{orderID}", deps.Orders.Get)
		r.Post("/{orderID}:transition", deps.Orders.Transition)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/stock/{productID}:adjust", deps.Stock.Adjust)
	})

	return r, nil
}
