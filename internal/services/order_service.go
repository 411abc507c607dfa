package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cardapio/internal/cart"
	"cardapio/internal/events"
	"cardapio/internal/models"
	"cardapio/internal/repositories"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInvalidOrder  = errors.New("invalid order")
	ErrInvalidStatus = errors.New("invalid order status")
)

var validStatuses = map[string]bool{
	models.OrderStatusPending:    true,
	models.OrderStatusConfirmed:  true,
	models.OrderStatusPreparing:  true,
	models.OrderStatusReady:      true,
	models.OrderStatusDelivering: true,
	models.OrderStatusDelivered:  true,
	models.OrderStatusCancelled:  true,
}

// OrderCreatedEvent is published after an order is stored.
type OrderCreatedEvent struct {
	OrderID      string  `json:"order_id"`
	RestaurantID string  `json:"restaurant_id"`
	Customer     string  `json:"customer"`
	Phone        string  `json:"phone"`
	Status       string  `json:"status"`
	Total        float64 `json:"total"`
	Source       string  `json:"source"`
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository
	coupons     *CouponService
	publisher   events.Publisher
	logger      *zap.Logger
}

// NewOrderService creates a new OrderService. publisher may be nil.
func NewOrderService(orderRepo repositories.OrderRepository, productRepo repositories.ProductRepository, coupons *CouponService, publisher events.Publisher, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		coupons:     coupons,
		publisher:   publisher,
		logger:      logger,
	}
}

// GetAllOrders retrieves the orders of a restaurant, or every order when restaurantID is empty.
func (s *OrderService) GetAllOrders(ctx context.Context, restaurantID string) ([]models.Order, error) {
	return s.orderRepo.GetAll(ctx, restaurantID)
}

// GetOrderByID retrieves a single order by its ID.
func (s *OrderService) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	return s.orderRepo.GetByID(ctx, id)
}

// CreateOrder prices the request against the catalogue, applies its coupon and stores it.
// Client-supplied prices are ignored. An order whose ID is already stored is returned as is,
// so a resubmitted order is not duplicated.
func (s *OrderService) CreateOrder(ctx context.Context, req models.Order, source string) (*models.Order, error) {
	if req.ID != "" {
		existing, err := s.orderRepo.GetByID(ctx, req.ID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, err
		}
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrInvalidOrder)
	}

	subtotal := decimal.Zero
	items := make([]models.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity of %s must be at least 1", ErrInvalidOrder, item.ProductID)
		}
		product, err := s.productRepo.GetByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, fmt.Errorf("%w: product %s does not exist", ErrInvalidOrder, item.ProductID)
			}
			return nil, err
		}
		if product.RestaurantID != req.RestaurantID || !product.Available {
			return nil, fmt.Errorf("%w: product %s is not available", ErrInvalidOrder, product.Name)
		}
		options, err := ResolveOptions(product, item.SelectedOptions)
		if err != nil {
			return nil, err
		}

		unit := cart.UnitPrice(product.Price, options)
		subtotal = subtotal.Add(unit.Mul(decimal.NewFromInt(int64(item.Quantity))))
		items = append(items, models.OrderItem{
			ProductID:       product.ID,
			Name:            product.Name,
			Quantity:        item.Quantity,
			UnitPrice:       cart.Money(unit),
			Notes:           item.Notes,
			SelectedOptions: options,
		})
	}

	order := &models.Order{
		ID:             req.ID,
		RestaurantID:   req.RestaurantID,
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		DeliveryMethod: req.DeliveryMethod,
		Address:        req.Address,
		Items:          items,
		Subtotal:       cart.Money(subtotal),
		Status:         models.OrderStatusPending,
		Source:         source,
	}

	if req.CouponCode != "" && s.coupons != nil {
		result, err := s.coupons.ValidateCoupon(ctx, req.CouponCode, req.RestaurantID, order.Subtotal)
		if err != nil {
			return nil, err
		}
		order.CouponCode = result.Coupon.Code
		order.Discount = result.Discount
	}
	final := subtotal.Sub(decimal.NewFromFloat(order.Discount))
	if final.IsNegative() {
		final = decimal.Zero
	}
	order.Total = cart.Money(final)

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order in repository: %w", err)
	}

	if order.CouponCode != "" {
		if err := s.coupons.Redeem(ctx, order.RestaurantID, order.CouponCode); err != nil {
			s.logger.Warn("failed to record coupon usage", zap.String("order_id", order.ID), zap.String("coupon", order.CouponCode), zap.Error(err))
		}
	}

	s.publish(ctx, events.OrderCreated, OrderCreatedEvent{
		OrderID:      order.ID,
		RestaurantID: order.RestaurantID,
		Customer:     order.CustomerName,
		Phone:        order.CustomerPhone,
		Status:       order.Status,
		Total:        order.Total,
		Source:       order.Source,
	})
	s.logger.Info("order created", zap.String("order_id", order.ID), zap.String("source", source), zap.Float64("total", order.Total))
	return order, nil
}

// ResolveOptions replaces the requested options with the catalogue's (names and prices) and
// enforces each group's choice limits.
func ResolveOptions(product *models.Product, requested []models.SelectedOption) ([]models.SelectedOption, error) {
	groups := make(map[string]*models.OptionGroup, len(product.OptionGroups))
	for i := range product.OptionGroups {
		groups[product.OptionGroups[i].Name] = &product.OptionGroups[i]
	}

	counts := make(map[string]int)
	chosen := make(map[[2]string]bool, len(requested))
	resolved := make([]models.SelectedOption, 0, len(requested))
	for _, sel := range requested {
		group, ok := groups[sel.GroupName]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no option group %q", ErrInvalidOrder, product.Name, sel.GroupName)
		}
		var found *models.Option
		for i := range group.Options {
			if group.Options[i].Name == sel.Option.Name {
				found = &group.Options[i]
				break
			}
		}
		if found == nil {
			return nil, fmt.Errorf("%w: option %q does not exist in %q", ErrInvalidOrder, sel.Option.Name, group.Name)
		}
		pair := [2]string{group.Name, found.Name}
		if chosen[pair] {
			return nil, fmt.Errorf("%w: option %q chosen more than once in %q", ErrInvalidOrder, found.Name, group.Name)
		}
		chosen[pair] = true
		counts[group.Name]++
		resolved = append(resolved, models.SelectedOption{
			GroupName: group.Name,
			Option:    models.OptionChoice{Name: found.Name, Price: found.Price},
		})
	}

	for _, group := range product.OptionGroups {
		n := counts[group.Name]
		lo := group.MinChoices
		if group.Required && lo < 1 {
			lo = 1
		}
		hi := group.MaxChoices
		if !group.MultipleChoice {
			hi = 1
		}
		if n < lo {
			return nil, fmt.Errorf("%w: %q requires at least %d choice(s) for %s", ErrInvalidOrder, group.Name, lo, product.Name)
		}
		if hi > 0 && n > hi {
			return nil, fmt.Errorf("%w: %q allows at most %d choice(s) for %s", ErrInvalidOrder, group.Name, hi, product.Name)
		}
	}
	return resolved, nil
}

// UpdateOrderStatus updates the status of an existing order.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id string, status string) error {
	if !validStatuses[status] {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	if err := s.orderRepo.UpdateStatus(ctx, id, status); err != nil {
		return fmt.Errorf("failed to update order status for order %s: %w", id, err)
	}

	s.publish(ctx, events.OrderStatusChanged, map[string]string{"order_id": id, "status": status})
	return nil
}

// ListCustomers aggregates a restaurant's orders by customer phone, most recent first.
// Cancelled orders do not count towards the amount spent.
func (s *OrderService) ListCustomers(ctx context.Context, restaurantID string) ([]models.Customer, error) {
	orders, err := s.orderRepo.GetAll(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	byPhone := make(map[string]*models.Customer)
	for _, o := range orders {
		c, ok := byPhone[o.CustomerPhone]
		if !ok {
			c = &models.Customer{Phone: o.CustomerPhone}
			byPhone[o.CustomerPhone] = c
		}
		c.OrderCount++
		if o.Status != models.OrderStatusCancelled {
			c.TotalSpent = cart.Money(decimal.NewFromFloat(c.TotalSpent).Add(decimal.NewFromFloat(o.Total)))
		}
		if !o.CreatedAt.Before(c.LastOrderAt) {
			c.LastOrderAt = o.CreatedAt
			c.Name = o.CustomerName
		}
	}

	customers := make([]models.Customer, 0, len(byPhone))
	for _, c := range byPhone {
		customers = append(customers, *c)
	}
	sort.Slice(customers, func(i, j int) bool {
		return customers[i].LastOrderAt.After(customers[j].LastOrderAt)
	})
	return customers, nil
}

func (s *OrderService) publish(ctx context.Context, routingKey string, payload interface{}) {
	if s.publisher == nil {
		s.logger.Debug("no event publisher configured, skipping", zap.String("routing_key", routingKey))
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := events.PublishJSON(pubCtx, s.publisher, routingKey, payload); err != nil {
		s.logger.Warn("failed to publish order event", zap.String("routing_key", routingKey), zap.Error(err))
	}
}
