// Package checkout turns a cart into an order and submits it through a chain of fallback tiers.
package checkout

import (
	"context"
	"errors"

	"cardapio/internal/cart"
	"cardapio/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrEmptyCart = errors.New("cart is empty")

// Checkout places orders for carts.
type Checkout struct {
	submitter *Submitter
	logger    *zap.Logger
}

func New(submitter *Submitter, logger *zap.Logger) *Checkout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checkout{submitter: submitter, logger: logger}
}

// PlaceOrder validates details, submits the cart's order and clears the cart once any tier
// accepted it. On failure the cart is left as it was.
func (c *Checkout) PlaceOrder(ctx context.Context, store *cart.Store, details Details) (*Result, error) {
	details = details.normalized()
	if err := details.Validate(); err != nil {
		return nil, err
	}

	snap := store.Snapshot()
	if len(snap.Lines) == 0 {
		return nil, ErrEmptyCart
	}
	if snap.RestaurantID == "" {
		return nil, cart.ErrMissingRestaurant
	}

	order := BuildOrder(snap, details)
	order.ID = uuid.NewString()

	result, err := c.submitter.Submit(ctx, order)
	if err != nil {
		return nil, err
	}

	if err := store.Clear(ctx); err != nil {
		c.logger.Error("order placed but cart could not be cleared", zap.String("order_id", result.Order.ID), zap.Error(err))
	}
	c.logger.Info("order placed",
		zap.String("order_id", result.Order.ID),
		zap.String("tier", result.Tier),
		zap.Bool("saved_in_db", result.SavedInDB))
	return result, nil
}

// BuildOrder copies the snapshot's lines, totals and coupon into an order.
func BuildOrder(snap cart.Snapshot, d Details) models.Order {
	items := make([]models.OrderItem, 0, len(snap.Lines))
	for _, line := range snap.Lines {
		items = append(items, models.OrderItem{
			ProductID:       line.Product.ID,
			Name:            line.Product.Name,
			Quantity:        line.Quantity,
			UnitPrice:       cart.Money(cart.UnitPrice(line.Product.Price, line.SelectedOptions)),
			Notes:           line.Notes,
			SelectedOptions: line.SelectedOptions,
		})
	}

	order := models.Order{
		RestaurantID:   snap.RestaurantID,
		CustomerName:   d.CustomerName,
		CustomerPhone:  d.CustomerPhone,
		DeliveryMethod: d.DeliveryMethod,
		Address:        d.Address,
		Items:          items,
		Subtotal:       snap.TotalPrice,
		Discount:       snap.Discount,
		Total:          snap.FinalPrice,
	}
	if snap.Coupon != nil {
		order.CouponCode = snap.Coupon.Code
	}
	return order
}
