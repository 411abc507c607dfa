package handlers

import (
	"cardapio/internal/models"
	"cardapio/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// CouponHandler validates coupons for customers and manages them for admins.
type CouponHandler struct {
	service  *services.CouponService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewCouponHandler(service *services.CouponService, logger *zap.Logger) *CouponHandler {
	return &CouponHandler{
		service:  service,
		validate: validator.New(),
		logger:   orNop(logger),
	}
}

// RegisterPublicRoutes registers the validation endpoint.
func (h *CouponHandler) RegisterPublicRoutes(router fiber.Router) {
	router.Post("/coupons/validate", h.HandleValidateCoupon)
}

// RegisterRoutes registers the admin coupon routes.
func (h *CouponHandler) RegisterRoutes(router fiber.Router) {
	couponRoutes := router.Group("/coupons")
	couponRoutes.Get("/", h.HandleGetCoupons)
	couponRoutes.Get("/:id", h.HandleGetCoupon)
	couponRoutes.Post("/", h.HandleCreateCoupon)
	couponRoutes.Put("/:id", h.HandleUpdateCoupon)
	couponRoutes.Delete("/:id", h.HandleDeleteCoupon)
}

// ValidateCouponRequest is the body of POST /coupons/validate.
type ValidateCouponRequest struct {
	Code         string  `json:"code" validate:"required"`
	RestaurantID string  `json:"restaurant_id" validate:"required"`
	OrderValue   float64 `json:"order_value" validate:"gte=0"`
}

// HandleValidateCoupon answers {coupon, discount} or 422 with the reason the code was refused.
func (h *CouponHandler) HandleValidateCoupon(c *fiber.Ctx) error {
	var req ValidateCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	result, err := h.service.ValidateCoupon(c.UserContext(), req.Code, req.RestaurantID, req.OrderValue)
	if err != nil {
		return respondError(c, h.logger, err, "Could not validate coupon")
	}
	return c.JSON(result)
}

func (h *CouponHandler) HandleGetCoupons(c *fiber.Ctx) error {
	restaurantID := c.Query("restaurant_id")
	if restaurantID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "restaurant_id query parameter is required",
		})
	}
	coupons, err := h.service.ListCoupons(c.UserContext(), restaurantID)
	if err != nil {
		return respondError(c, h.logger, err, "Could not retrieve coupons")
	}
	return c.JSON(coupons)
}

func (h *CouponHandler) HandleGetCoupon(c *fiber.Ctx) error {
	coupon, err := h.service.GetCoupon(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "Could not retrieve coupon")
	}
	return c.JSON(coupon)
}

func (h *CouponHandler) HandleCreateCoupon(c *fiber.Ctx) error {
	var coupon models.Coupon
	if err := c.BodyParser(&coupon); err != nil {
		return invalidBody(c, err)
	}
	coupon.ID = ""
	if err := h.validate.Struct(coupon); err != nil {
		return validationFailed(c, err)
	}
	if err := h.service.CreateCoupon(c.UserContext(), &coupon); err != nil {
		return respondError(c, h.logger, err, "Could not create coupon")
	}
	return c.Status(fiber.StatusCreated).JSON(coupon)
}

func (h *CouponHandler) HandleUpdateCoupon(c *fiber.Ctx) error {
	var coupon models.Coupon
	if err := c.BodyParser(&coupon); err != nil {
		return invalidBody(c, err)
	}
	coupon.ID = c.Params("id")
	if err := h.validate.Struct(coupon); err != nil {
		return validationFailed(c, err)
	}
	if err := h.service.UpdateCoupon(c.UserContext(), &coupon); err != nil {
		return respondError(c, h.logger, err, "Could not update coupon")
	}
	return c.JSON(coupon)
}

func (h *CouponHandler) HandleDeleteCoupon(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.service.DeleteCoupon(c.UserContext(), id); err != nil {
		return respondError(c, h.logger, err, "Could not delete coupon")
	}
	return c.JSON(fiber.Map{
		"message": "Coupon " + id + " deleted successfully",
	})
}
