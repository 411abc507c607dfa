package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DeliveryMethodDelivery = "delivery"
	DeliveryMethodPickup   = "pickup"
)

const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusPreparing  = "preparing"
	OrderStatusReady      = "ready"
	OrderStatusDelivering = "delivering"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// OrderItem represents a single line within an order.
type OrderItem struct {
	ProductID       string           `json:"product_id" validate:"required"`
	Name            string           `json:"name"`
	Quantity        int              `json:"quantity" validate:"gte=1"`
	UnitPrice       float64          `json:"unit_price"` // Price at the time of order, options included
	Notes           string           `json:"notes,omitempty"`
	SelectedOptions []SelectedOption `json:"selected_options,omitempty" validate:"dive"`
}

// Order represents a customer order placed from the digital menu.
type Order struct {
	ID             string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	RestaurantID   string      `json:"restaurant_id" gorm:"index;type:varchar(64)" validate:"required"`
	CustomerName   string      `json:"customer_name" validate:"required,min=2,max=100"`
	CustomerPhone  string      `json:"customer_phone" gorm:"index;type:varchar(32)" validate:"required,min=8,max=32"`
	DeliveryMethod string      `json:"delivery_method" gorm:"type:varchar(16)" validate:"required,oneof=delivery pickup"`
	Address        string      `json:"address,omitempty" validate:"required_if=DeliveryMethod delivery,max=300"`
	Items          []OrderItem `json:"items" gorm:"serializer:json" validate:"required,min=1,dive"`
	Subtotal       float64     `json:"subtotal"`
	Discount       float64     `json:"discount"`
	Total          float64     `json:"total"`
	CouponCode     string      `json:"coupon_code,omitempty" gorm:"type:varchar(40)"`
	Status         string      `json:"status" gorm:"type:varchar(16)"`
	Source         string      `json:"source,omitempty" gorm:"type:varchar(16)"` // Which submission path stored it
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Customer is a read model aggregated from orders, keyed by phone number.
type Customer struct {
	Phone       string    `json:"phone"`
	Name        string    `json:"name"`
	OrderCount  int       `json:"order_count"`
	TotalSpent  float64   `json:"total_spent"`
	LastOrderAt time.Time `json:"last_order_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return nil
}
