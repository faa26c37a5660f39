// Package di wires the application graph: configuration, platform clients,
// repositories, services, and the HTTP router.
package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/poshakghar/api/internal/handlers"
	"github.com/poshakghar/api/internal/platform/config"
	"github.com/poshakghar/api/internal/platform/events"
	platformfs "github.com/poshakghar/api/internal/platform/firestore"
	"github.com/poshakghar/api/internal/platform/observability"
	repofs "github.com/poshakghar/api/internal/repositories/firestore"
	"github.com/poshakghar/api/internal/services"
)

// Container holds the wired application and its closable resources.
type Container struct {
	Config  config.Config
	Logger  *zap.Logger
	Handler http.Handler

	provider  *platformfs.Provider
	publisher events.Publisher
}

// New builds the full dependency graph from configuration.
func New(cfg config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	provider := platformfs.NewProvider(cfg.Firestore)

	var publisher events.Publisher = events.NopPublisher{}
	if !cfg.PubSub.Disabled {
		p, err := events.NewPubSubPublisher(cfg.PubSub)
		if err != nil {
			logger.Warn("event publishing disabled", zap.Error(err))
		} else {
			publisher = p
		}
	}

	clock := time.Now
	idGenerator := func() string { return ulid.Make().String() }
	eventLogger := observability.EventLogger(logger)

	productRepo, err := repofs.NewProductRepository(provider, clock)
	if err != nil {
		return nil, fmt.Errorf("di: product repository: %w", err)
	}
	couponRepo, err := repofs.NewCouponRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("di: coupon repository: %w", err)
	}
	stockRepo, err := repofs.NewStockRepository(provider, clock)
	if err != nil {
		return nil, fmt.Errorf("di: stock repository: %w", err)
	}
	orderRepo, err := repofs.NewOrderRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("di: order repository: %w", err)
	}
	counterRepo, err := repofs.NewCounterRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("di: counter repository: %w", err)
	}

	pricing, err := services.NewPricingService(services.PricingServiceDeps{
		Products: productRepo,
		Shipping: cfg.Shipping,
		Clock:    clock,
		Logger:   eventLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("di: pricing service: %w", err)
	}
	discounts, err := services.NewDiscountEngine(services.DiscountEngineDeps{
		Coupons: couponRepo,
		Clock:   clock,
		Logger:  eventLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("di: discount engine: %w", err)
	}
	stock, err := services.NewStockService(services.StockServiceDeps{
		Stock:     stockRepo,
		Publisher: publisher,
		Clock:     clock,
		Logger:    eventLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("di: stock service: %w", err)
	}
	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:    orderRepo,
		Publisher: publisher,
		Clock:     clock,
		Logger:    eventLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("di: order service: %w", err)
	}
	checkout, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Pricing:       pricing,
		Discounts:     discounts,
		Stock:         stock,
		Orders:        orderRepo,
		Counters:      counterRepo,
		Publisher:     publisher,
		Clock:         clock,
		IDGenerator:   idGenerator,
		CommitRetries: cfg.Checkout.CommitRetries,
		Logger:        eventLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("di: checkout service: %w", err)
	}

	checkoutHandler, err := handlers.NewCheckoutHandler(checkout)
	if err != nil {
		return nil, fmt.Errorf("di: checkout handler: %w", err)
	}
	ordersHandler, err := handlers.NewOrdersHandler(orders)
	if err != nil {
		return nil, fmt.Errorf("di: orders handler: %w", err)
	}
	stockHandler, err := handlers.NewAdminStockHandler(stock)
	if err != nil {
		return nil, fmt.Errorf("di: stock handler: %w", err)
	}
	healthHandler := handlers.NewHealthHandler(func(ctx context.Context) error {
		_, err := provider.Client(ctx)
		return err
	})

	router, err := handlers.NewRouter(handlers.RouterDeps{
		Logger:    logger,
		ProjectID: cfg.Firestore.ProjectID,
		Checkout:  checkoutHandler,
		Orders:    ordersHandler,
		Stock:     stockHandler,
		Health:    healthHandler,
	})
	if err != nil {
		return nil, fmt.Errorf("di: router: %w", err)
	}

	return &Container{
		Config:    cfg,
		Logger:    logger,
		Handler:   router,
		provider:  provider,
		publisher: publisher,
	}, nil
}

// Close releases the container's long-lived resources.
func (c *Container) Close(ctx context.Context) error {
	var firstErr error
	if err := c.publisher.Close(ctx); err != nil {
		firstErr = err
	}
	if err := c.provider.Close(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
