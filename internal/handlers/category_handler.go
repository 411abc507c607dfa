package handlers

import (
	"cardapio/internal/models"
	"cardapio/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// CategoryHandler handles admin requests for menu categories.
type CategoryHandler struct {
	service  *services.ProductService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewCategoryHandler(service *services.ProductService, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{
		service:  service,
		validate: validator.New(),
		logger:   orNop(logger),
	}
}

func (h *CategoryHandler) RegisterRoutes(router fiber.Router) {
	categoryRoutes := router.Group("/categories")
	categoryRoutes.Get("/", h.HandleGetCategories)
	categoryRoutes.Post("/", h.HandleCreateCategory)
	categoryRoutes.Put("/:id", h.HandleUpdateCategory)
	categoryRoutes.Delete("/:id", h.HandleDeleteCategory)
}

func (h *CategoryHandler) HandleGetCategories(c *fiber.Ctx) error {
	restaurantID := c.Query("restaurant_id")
	if restaurantID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "restaurant_id query parameter is required",
		})
	}
	categories, err := h.service.GetCategories(c.UserContext(), restaurantID)
	if err != nil {
		return respondError(c, h.logger, err, "Could not retrieve categories")
	}
	return c.JSON(categories)
}

func (h *CategoryHandler) HandleCreateCategory(c *fiber.Ctx) error {
	var category models.Category
	if err := c.BodyParser(&category); err != nil {
		return invalidBody(c, err)
	}
	category.ID = ""
	if err := h.validate.Struct(category); err != nil {
		return validationFailed(c, err)
	}
	if err := h.service.CreateCategory(c.UserContext(), &category); err != nil {
		return respondError(c, h.logger, err, "Could not create category")
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}

func (h *CategoryHandler) HandleUpdateCategory(c *fiber.Ctx) error {
	var category models.Category
	if err := c.BodyParser(&category); err != nil {
		return invalidBody(c, err)
	}
	category.ID = c.Params("id")
	if err := h.validate.StructPartial(category, "Name", "Position"); err != nil {
		return validationFailed(c, err)
	}
	if err := h.service.UpdateCategory(c.UserContext(), &category); err != nil {
		return respondError(c, h.logger, err, "Could not update category")
	}
	return c.JSON(category)
}

func (h *CategoryHandler) HandleDeleteCategory(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.service.DeleteCategory(c.UserContext(), id); err != nil {
		return respondError(c, h.logger, err, "Could not delete category")
	}
	return c.JSON(fiber.Map{
		"message": "Category " + id + " deleted successfully",
	})
}
