// Package client talks to a remote cardapio deployment over its REST API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cardapio/internal/cart"
	"cardapio/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Paths of the two order endpoints.
const (
	PrimaryOrderPath   = "/api/v1/orders"
	AlternateOrderPath = "/api/v1/public/orders"
	couponValidatePath = "/api/v1/coupons/validate"
)

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote API returned status %d", e.Code)
	}
	return fmt.Sprintf("remote API returned status %d: %s", e.Code, e.Message)
}

// Rejected reports whether the server refused the request itself, as opposed to failing to
// serve it. Timeouts and rate limiting are not rejections.
func (e *StatusError) Rejected() bool {
	return e.Code >= 400 && e.Code < 500 &&
		e.Code != fiber.StatusRequestTimeout && e.Code != fiber.StatusTooManyRequests
}

// APIClient calls the coupon and order endpoints of a remote deployment.
type APIClient struct {
	baseURL string
	timeout time.Duration
}

// NewAPIClient creates a client for baseURL. timeout bounds every request.
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

type couponRequest struct {
	Code         string  `json:"code"`
	RestaurantID string  `json:"restaurant_id"`
	OrderValue   float64 `json:"order_value"`
}

// ValidateCoupon implements cart.CouponValidator against the remote API. A 4xx answer becomes a
// *cart.ValidationError carrying the server's message.
func (c *APIClient) ValidateCoupon(ctx context.Context, code, restaurantID string, orderValue float64) (*cart.CouponResult, error) {
	var result cart.CouponResult
	err := c.post(ctx, couponValidatePath, couponRequest{Code: code, RestaurantID: restaurantID, OrderValue: orderValue}, &result)
	if err != nil {
		var serr *StatusError
		if errors.As(err, &serr) && serr.Rejected() {
			msg := serr.Message
			if msg == "" {
				msg = "invalid coupon"
			}
			return nil, &cart.ValidationError{Message: msg, Err: serr}
		}
		return nil, err
	}
	return &result, nil
}

// SubmitOrder posts order to path and returns the stored order.
func (c *APIClient) SubmitOrder(ctx context.Context, path string, order *models.Order) (*models.Order, error) {
	var created models.Order
	if err := c.post(ctx, path, order, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *APIClient) post(ctx context.Context, path string, body, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	agent := fiber.Post(c.baseURL + path)
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	agent.JSON(body)
	agent.Timeout(timeout)

	code, respBody, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("request to %s failed: %w", path, errors.Join(errs...))
	}

	if code < 200 || code > 299 {
		var payload struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(respBody, &payload)
		return &StatusError{Code: code, Message: payload.Message}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
