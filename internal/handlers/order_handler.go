package handlers

import (
	"fmt"

	"cardapio/internal/checkout"
	"cardapio/internal/models"
	"cardapio/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Sources recorded on orders received over HTTP.
const (
	SourcePrimary   = "api"
	SourceAlternate = "public"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service   *services.OrderService
	submitter *checkout.Submitter
	local     *checkout.LocalAttempt
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewOrderHandler creates a new OrderHandler. submitter and local back the pending-order
// routes and may be nil.
func NewOrderHandler(service *services.OrderService, submitter *checkout.Submitter, local *checkout.LocalAttempt, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		service:   service,
		submitter: submitter,
		local:     local,
		validate:  validator.New(),
		logger:    orNop(logger),
	}
}

// RegisterPublicRoutes registers the two order intake endpoints.
func (h *OrderHandler) RegisterPublicRoutes(router fiber.Router) {
	router.Post("/orders", h.intake(SourcePrimary))
	router.Post("/public/orders", h.intake(SourceAlternate))
}

// RegisterRoutes registers the admin order routes.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/pending", h.HandleGetPendingOrders)
	orderRoutes.Post("/pending/resubmit", h.HandleResubmitPendingOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Patch("/:id/status", h.HandleUpdateOrderStatus)
	router.Get("/customers", h.HandleGetCustomers)
}

func (h *OrderHandler) intake(source string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return h.HandleCreateOrder(c, source)
	}
}

// HandleCreateOrder prices and stores an order. Prices sent by the client are ignored.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx, source string) error {
	var orderRequest models.Order
	if err := c.BodyParser(&orderRequest); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(orderRequest); err != nil {
		return validationFailed(c, err)
	}

	createdOrder, err := h.service.CreateOrder(c.UserContext(), orderRequest, source)
	if err != nil {
		return respondError(c, h.logger, err, "Could not create order")
	}
	return c.Status(fiber.StatusCreated).JSON(createdOrder)
}

// HandleGetOrders lists orders, newest first, optionally filtered by ?restaurant_id=.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.service.GetAllOrders(c.UserContext(), c.Query("restaurant_id"))
	if err != nil {
		return respondError(c, h.logger, err, "Could not retrieve orders")
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	orderID := c.Params("id")
	order, err := h.service.GetOrderByID(c.UserContext(), orderID)
	if err != nil {
		return respondError(c, h.logger, err, fmt.Sprintf("Could not retrieve order %s", orderID))
	}
	return c.JSON(order)
}

// HandleUpdateOrderStatus updates the status of an existing order.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	orderID := c.Params("id")
	var updateData struct {
		Status string `json:"status" validate:"required"`
	}
	if err := c.BodyParser(&updateData); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(updateData); err != nil {
		return validationFailed(c, err)
	}

	if err := h.service.UpdateOrderStatus(c.UserContext(), orderID, updateData.Status); err != nil {
		return respondError(c, h.logger, err, "Could not update order status")
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Order %s status updated successfully to %s", orderID, updateData.Status),
	})
}

// HandleGetPendingOrders lists orders saved locally because no other tier accepted them.
func (h *OrderHandler) HandleGetPendingOrders(c *fiber.Ctx) error {
	if h.local == nil {
		return c.JSON([]models.Order{})
	}
	pending, err := h.local.Pending(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err, "Could not retrieve pending orders")
	}
	return c.JSON(pending)
}

// HandleResubmitPendingOrders retries every locally saved order.
func (h *OrderHandler) HandleResubmitPendingOrders(c *fiber.Ctx) error {
	if h.local == nil || h.submitter == nil {
		return c.JSON(fiber.Map{"resubmitted": 0})
	}
	n, err := h.submitter.Resubmit(c.UserContext(), h.local)
	if err != nil {
		return respondError(c, h.logger, err, "Could not resubmit pending orders")
	}
	return c.JSON(fiber.Map{"resubmitted": n})
}

// HandleGetCustomers lists the customers of the restaurant given by ?restaurant_id=.
func (h *OrderHandler) HandleGetCustomers(c *fiber.Ctx) error {
	restaurantID := c.Query("restaurant_id")
	if restaurantID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "restaurant_id query parameter is required",
		})
	}
	customers, err := h.service.ListCustomers(c.UserContext(), restaurantID)
	if err != nil {
		return respondError(c, h.logger, err, "Could not retrieve customers")
	}
	return c.JSON(customers)
}
