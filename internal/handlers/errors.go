package handlers

import (
	"errors"
	"fmt"

	"cardapio/internal/cart"
	"cardapio/internal/checkout"
	"cardapio/internal/repositories"
	"cardapio/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var badRequest = []error{
	services.ErrInvalidOrder,
	services.ErrInvalidStatus,
	services.ErrInvalidProduct,
	services.ErrInvalidCoupon,
	checkout.ErrEmptyCart,
	cart.ErrInvalidQuantity,
	cart.ErrMissingProduct,
	cart.ErrDuplicateOption,
	cart.ErrMissingRestaurant,
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func errorStatus(err error) int {
	var verr *cart.ValidationError
	switch {
	case errors.As(err, &verr):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, repositories.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrUserExists), errors.Is(err, cart.ErrStaleCoupon):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, services.ErrRegistrationClosed):
		return fiber.StatusUnauthorized
	case errors.Is(err, checkout.ErrSubmissionFailed):
		return fiber.StatusServiceUnavailable
	}
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return fiber.StatusBadRequest
		}
	}
	if errors.Is(err, checkout.ErrRejected) {
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}

// respondError writes the {message, error} body for err. Coupon rejections carry their own
// customer-facing message.
func respondError(c *fiber.Ctx, logger *zap.Logger, err error, message string) error {
	status := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		logger.Error(message, zap.String("path", c.Path()), zap.Error(err))
	} else {
		logger.Debug(message, zap.String("path", c.Path()), zap.Error(err))
	}

	var verr *cart.ValidationError
	if errors.As(err, &verr) {
		message = verr.Message
	}
	return c.Status(status).JSON(fiber.Map{
		"message": message,
		"error":   err.Error(),
	})
}

func invalidBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
		"error":   err.Error(),
	})
}

// validationFailed maps validator errors to field messages. Other errors are reported as a
// bad request.
func validationFailed(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"error":   err.Error(),
		})
	}
	errorMessages := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}
