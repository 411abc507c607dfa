package handlers

import (
	"errors"
	"fmt"

	"cardapio/internal/cart"
	"cardapio/internal/checkout"
	"cardapio/internal/models"
	"cardapio/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// CartHandler exposes per-session carts. Every mutation answers with the cart snapshot.
type CartHandler struct {
	sessions *cart.Sessions
	products *services.ProductService
	checkout *checkout.Checkout
	validate *validator.Validate
	logger   *zap.Logger
}

func NewCartHandler(sessions *cart.Sessions, products *services.ProductService, co *checkout.Checkout, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		products: products,
		checkout: co,
		validate: validator.New(),
		logger:   orNop(logger),
	}
}

// RegisterRoutes registers the cart routes under /sessions/:sid/cart.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cartRoutes := router.Group("/sessions/:sid/cart")
	cartRoutes.Get("/", h.HandleGetCart)
	cartRoutes.Delete("/", h.HandleClearCart)
	cartRoutes.Post("/items", h.HandleAddItem)
	cartRoutes.Delete("/items/:productId", h.HandleRemoveItem)
	cartRoutes.Patch("/lines", h.HandleUpdateLine)
	cartRoutes.Put("/restaurant", h.HandleSetRestaurant)
	cartRoutes.Post("/coupon", h.HandleApplyCoupon)
	cartRoutes.Delete("/coupon", h.HandleRemoveCoupon)
	cartRoutes.Post("/checkout", h.HandleCheckout)
}

// AddItemRequest is the body of POST .../cart/items. Name and prices come from the catalogue.
type AddItemRequest struct {
	ProductID       string                  `json:"product_id" validate:"required"`
	Quantity        int                     `json:"quantity" validate:"gte=1"`
	Notes           string                  `json:"notes" validate:"max=280"`
	SelectedOptions []models.SelectedOption `json:"selected_options" validate:"dive"`
}

// UpdateLineRequest is the body of PATCH .../cart/lines. Absent fields are left unchanged.
type UpdateLineRequest struct {
	Key      string  `json:"key" validate:"required"`
	Quantity *int    `json:"quantity"`
	Notes    *string `json:"notes" validate:"omitempty,max=280"`
}

func (h *CartHandler) store(c *fiber.Ctx) (*cart.Store, error) {
	return h.sessions.Get(c.UserContext(), c.Params("sid"))
}

func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	store, err := h.store(c)
	if err != nil {
		return respondError(c, h.logger, err, "Could not load cart")
	}
	return c.JSON(store.Snapshot())
}

// HandleAddItem adds a catalogue product to the cart. Adding a product of another restaurant
// switches the cart to that restaurant, which empties it first.
func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	var req AddItemRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	ctx := c.UserContext()
	product, err := h.products.GetProductByID(ctx, req.ProductID)
	if err != nil {
		return respondError(c, h.logger, err, "Could not find product")
	}
	if !product.Available {
		return respondError(c, h.logger, fmt.Errorf("%w: %s is not available", services.ErrInvalidOrder, product.Name), "Product is not available")
	}
	options, err := services.ResolveOptions(product, req.SelectedOptions)
	if err != nil {
		return respondError(c, h.logger, err, "Invalid options")
	}

	store, err := h.store(c)
	if err != nil {
		return respondError(c, h.logger, err, "Could not load cart")
	}
	if store.Snapshot().RestaurantID != product.RestaurantID {
		if err := store.SetRestaurant(ctx, product.RestaurantID); err != nil {
			return respondError(c, h.logger, err, "Could not update cart")
		}
	}

	item := models.CartItem{
		Product: models.CartProduct{
			ID:       product.ID,
			Name:     product.Name,
			Price:    product.Price,
			ImageURL: product.ImageURL,
		},
		Quantity:        req.Quantity,
		Notes:           req.Notes,
		SelectedOptions: options,
	}
	if err := store.AddItem(ctx, item); err != nil {
		return respondError(c, h.logger, err, "Could not add item")
	}
	return c.Status(fiber.StatusCreated).JSON(store.Snapshot())
}

// HandleRemoveItem removes every line of a product.
func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	store, err := h.store(c)
	if err != nil {
		return respondError(c, h.logger, err, "Could not load cart")
	}
	if err := store.RemoveItem(c.UserContext(), c.Params("productId")); err != nil {
		return respondError(c, h.logger, err, "Could not remove item")
	}
	return c.JSON(store.Snapshot())
}

// HandleUpdateLine changes the quantity and/or notes of one line. A quantity of zero removes it.
func (h *CartHandler) HandleUpdateLine(c *fiber.Ctx) error {
	var req UpdateLineRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	ctx := c.UserContext()
	store, err := h.store(c)
	if err != nil {
		return respondError(c, h.logger, err, "Could not load cart")
	}
	if req.Notes != nil {
		if err := store.UpdateItemNotes(ctx, req.Key, *req.Notes); err != nil {
			return respondError(c, h.logger, err, "Could not update notes")
		}
	}
	if req.Quantity != nil {
		if err := store.UpdateItemQuantity(ctx, req.Key, *req.Quantity); err != nil {
			return respondError(c, h.logger, err, "Could not update quantity")
		}
	}
	return c.JSON(store.Snapshot())
}

func (h *CartHandler) HandleClearCart(c *fiber.Ctx) error {
	store, err := h.store(c)
	if err != nil {
		return respondError(c, h.logger, err, "Could not load cart")
	}
	if err := store.Clear(c.UserContext()); err != nil {
		return respondError(c, h.logger, err, "Could not clear cart")
	}
	return c.JSON(store.Snapshot())
}

func (h *CartHandler) HandleSetRestaurant(c *fiber.Ctx) error {
	var req struct {
		RestaurantID string `json:"restaurant_id" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	store, err := h.store(c)
	if err != nil {
		return respondError(c, h.logger, err, "Could not load cart")
	}
	if err := store.SetRestaurant(c.UserContext(), req.RestaurantID); err != nil {
		return respondError(c, h.logger, err, "Could not set restaurant")
	}
	return c.JSON(store.Snapshot())
}

// HandleApplyCoupon validates the code against the current subtotal and applies it. A refused
// code answers 422 with the reason and leaves the cart untouched.
func (h *CartHandler) HandleApplyCoupon(c *fiber.Ctx) error {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}

	store, err := h.store(c)
	if err != nil {
		return respondError(c, h.logger, err, "Could not load cart")
	}
	if _, err := store.ApplyCouponCode(c.UserContext(), req.Code); err != nil {
		return respondError(c, h.logger, err, "Could not apply coupon")
	}
	return c.JSON(store.Snapshot())
}

func (h *CartHandler) HandleRemoveCoupon(c *fiber.Ctx) error {
	store, err := h.store(c)
	if err != nil {
		return respondError(c, h.logger, err, "Could not load cart")
	}
	if err := store.RemoveCoupon(c.UserContext()); err != nil {
		return respondError(c, h.logger, err, "Could not remove coupon")
	}
	return c.JSON(store.Snapshot())
}

// HandleCheckout places the cart's order. saved_in_db is false when the order could only be
// queued or kept locally.
func (h *CartHandler) HandleCheckout(c *fiber.Ctx) error {
	var details checkout.Details
	if err := c.BodyParser(&details); err != nil {
		return invalidBody(c, err)
	}

	store, err := h.store(c)
	if err != nil {
		return respondError(c, h.logger, err, "Could not load cart")
	}
	result, err := h.checkout.PlaceOrder(c.UserContext(), store, details)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return validationFailed(c, err)
		}
		return respondError(c, h.logger, err, "Could not place order")
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}
