package main

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cardapio/internal/cart"
	"cardapio/internal/checkout"
	"cardapio/internal/client"
	"cardapio/internal/events"
	"cardapio/internal/handlers"
	"cardapio/internal/kv"
	"cardapio/internal/middleware"
	"cardapio/internal/models"
	"cardapio/internal/repositories"
	"cardapio/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the resources the application is built from. Publisher and API may be nil;
// PendingKV defaults to CartKV.
type Deps struct {
	DB        *gorm.DB
	CartKV    kv.Store
	PendingKV kv.Store
	Publisher events.Publisher
	API       *client.APIClient
	JWTSecret string
	TokenTTL  time.Duration
	Logger    *zap.Logger
}

// App is the wired HTTP application.
type App struct {
	Fiber     *fiber.App
	Orders    *services.OrderService
	Submitter *checkout.Submitter
}

// NewApp wires repositories, services, the checkout chain and the HTTP routes.
func NewApp(deps Deps) *App {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// --- Repositories ---
	productRepo := repositories.NewGORMProductRepository(deps.DB)
	categoryRepo := repositories.NewGORMCategoryRepository(deps.DB)
	couponRepo := repositories.NewGORMCouponRepository(deps.DB)
	orderRepo := repositories.NewGORMOrderRepository(deps.DB)
	userRepo := repositories.NewGORMUserRepository(deps.DB)

	// --- Services ---
	productService := services.NewProductService(productRepo, categoryRepo)
	couponService := services.NewCouponService(couponRepo, logger)
	orderService := services.NewOrderService(orderRepo, productRepo, couponService, deps.Publisher, logger)
	authService := services.NewAuthService(userRepo, deps.JWTSecret, deps.TokenTTL)

	// Carts validate coupons where their orders go.
	var validator cart.CouponValidator = couponService
	if deps.API != nil {
		validator = deps.API
	}
	sessions := cart.NewSessions(kv.Namespace(deps.CartKV, "cart"), validator, logger)

	// --- Checkout chain ---
	var attempts []checkout.Attempt
	if deps.API != nil {
		attempts = append(attempts,
			checkout.NewAPIAttempt(deps.API, checkout.TierPrimary, client.PrimaryOrderPath),
			checkout.NewAPIAttempt(deps.API, checkout.TierAlternate, client.AlternateOrderPath),
		)
	} else {
		attempts = append(attempts, checkout.NewServiceAttempt(orderService))
	}
	if deps.Publisher != nil {
		attempts = append(attempts, checkout.NewQueueAttempt(deps.Publisher))
	}
	pendingKV := deps.PendingKV
	if pendingKV == nil {
		pendingKV = deps.CartKV
	}
	local := checkout.NewLocalAttempt(kv.Namespace(pendingKV, "checkout"))
	attempts = append(attempts, local)
	submitter := checkout.NewSubmitter(logger, attempts...)

	// --- Handlers ---
	authHandler := handlers.NewAuthHandler(authService, logger)
	productHandler := handlers.NewProductHandler(productService, logger)
	categoryHandler := handlers.NewCategoryHandler(productService, logger)
	couponHandler := handlers.NewCouponHandler(couponService, logger)
	orderHandler := handlers.NewOrderHandler(orderService, submitter, local, logger)
	cartHandler := handlers.NewCartHandler(sessions, productService, checkout.New(submitter, logger), logger)

	app := fiber.New()
	app.Use(recover.New())
	app.Use(middleware.RequestLogger(logger))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
			"tiers":  submitter.Tiers(),
		})
	})

	apiV1 := app.Group("/api/v1")
	authHandler.RegisterRoutes(apiV1)
	productHandler.RegisterPublicRoutes(apiV1)
	couponHandler.RegisterPublicRoutes(apiV1)
	orderHandler.RegisterPublicRoutes(apiV1)
	cartHandler.RegisterRoutes(apiV1)

	admin := apiV1.Group("/admin", middleware.AuthRequired(authService, logger))
	productHandler.RegisterRoutes(admin)
	categoryHandler.RegisterRoutes(admin)
	couponHandler.RegisterRoutes(admin)
	orderHandler.RegisterRoutes(admin)

	return &App{Fiber: app, Orders: orderService, Submitter: submitter}
}

// queuedOrderHandler stores orders that checkout handed to the broker. Anything but
// order.queued is acknowledged untouched, and so are messages that can never be stored.
func queuedOrderHandler(orders *services.OrderService, logger *zap.Logger) events.Handler {
	return func(ctx context.Context, routingKey string, body []byte) error {
		if routingKey != events.OrderQueued {
			return nil
		}

		var order models.Order
		if err := json.Unmarshal(body, &order); err != nil {
			logger.Error("dropping undecodable queued order", zap.Error(err))
			return nil
		}

		stored, err := orders.CreateOrder(ctx, order, checkout.TierQueue)
		if err != nil {
			var verr *cart.ValidationError
			if errors.Is(err, services.ErrInvalidOrder) || errors.As(err, &verr) {
				logger.Warn("dropping rejected queued order", zap.String("order_id", order.ID), zap.Error(err))
				return nil
			}
			return err
		}
		logger.Info("queued order stored", zap.String("order_id", stored.ID))
		return nil
	}
}
