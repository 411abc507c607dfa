package client_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"cardapio/internal/cart"
	"cardapio/internal/client"
	"cardapio/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, app *fiber.App) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "http://" + ln.Addr().String()
}

func newRemote(t *testing.T) string {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Post("/api/v1/coupons/validate", func(c *fiber.Ctx) error {
		var req struct {
			Code         string  `json:"code"`
			RestaurantID string  `json:"restaurant_id"`
			OrderValue   float64 `json:"order_value"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body"})
		}
		switch req.Code {
		case "SAVE10":
			return c.JSON(cart.CouponResult{
				Coupon:   models.AppliedCoupon{Code: "SAVE10", DiscountType: models.DiscountFixed, Value: 10},
				Discount: 10,
			})
		case "BIG":
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"message": "minimum order value for this coupon is 100.00",
				"error":   "order value is below the coupon minimum",
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "database unavailable"})
		}
	})

	app.Post("/api/v1/orders", func(c *fiber.Ctx) error {
		var order models.Order
		if err := c.BodyParser(&order); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body"})
		}
		order.Status = models.OrderStatusPending
		order.Total = 42
		return c.Status(fiber.StatusCreated).JSON(order)
	})

	app.Post("/api/v1/public/orders", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": "try later"})
	})

	app.Post("/slow", func(c *fiber.Ctx) error {
		time.Sleep(500 * time.Millisecond)
		return c.SendStatus(fiber.StatusOK)
	})

	return startServer(t, app)
}

func TestAPIClient_ValidateCoupon(t *testing.T) {
	api := client.NewAPIClient(newRemote(t), 2*time.Second)
	ctx := context.Background()

	result, err := api.ValidateCoupon(ctx, "SAVE10", "r1", 60)
	require.NoError(t, err)
	assert.Equal(t, 10.0, result.Discount)
	assert.Equal(t, "SAVE10", result.Coupon.Code)

	_, err = api.ValidateCoupon(ctx, "BIG", "r1", 60)
	var verr *cart.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "minimum order value for this coupon is 100.00", verr.Message)

	_, err = api.ValidateCoupon(ctx, "BROKEN", "r1", 60)
	require.Error(t, err)
	assert.False(t, errors.As(err, &verr), "server failures are not coupon rejections")
	var serr *client.StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, fiber.StatusInternalServerError, serr.Code)
}

func TestAPIClient_SubmitOrder(t *testing.T) {
	api := client.NewAPIClient(newRemote(t), 2*time.Second)
	order := &models.Order{ID: "o1", RestaurantID: "r1", CustomerName: "Ana"}

	created, err := api.SubmitOrder(context.Background(), client.PrimaryOrderPath, order)
	require.NoError(t, err)
	assert.Equal(t, "o1", created.ID)
	assert.Equal(t, models.OrderStatusPending, created.Status)
	assert.Equal(t, 42.0, created.Total)

	_, err = api.SubmitOrder(context.Background(), client.AlternateOrderPath, order)
	var serr *client.StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, fiber.StatusServiceUnavailable, serr.Code)
	assert.Equal(t, "try later", serr.Message)
	assert.False(t, serr.Rejected())
}

func TestAPIClient_Failures(t *testing.T) {
	base := newRemote(t)

	t.Run("timeout", func(t *testing.T) {
		api := client.NewAPIClient(base, 50*time.Millisecond)
		_, err := api.SubmitOrder(context.Background(), "/slow", &models.Order{})
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		api := client.NewAPIClient(base, time.Second)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := api.SubmitOrder(ctx, client.PrimaryOrderPath, &models.Order{})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("unreachable", func(t *testing.T) {
		api := client.NewAPIClient("http://127.0.0.1:1", 200*time.Millisecond)
		_, err := api.SubmitOrder(context.Background(), client.PrimaryOrderPath, &models.Order{})
		require.Error(t, err)
		var serr *client.StatusError
		assert.False(t, errors.As(err, &serr))
	})
}

func TestStatusError_Rejected(t *testing.T) {
	assert.True(t, (&client.StatusError{Code: 400}).Rejected())
	assert.True(t, (&client.StatusError{Code: 422}).Rejected())
	assert.False(t, (&client.StatusError{Code: 408}).Rejected())
	assert.False(t, (&client.StatusError{Code: 429}).Rejected())
	assert.False(t, (&client.StatusError{Code: 502}).Rejected())
}
