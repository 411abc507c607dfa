package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DiscountFixed      = "fixed"
	DiscountPercentage = "percentage"
)

// Coupon is a discount code issued by a restaurant. Codes are case-sensitive.
type Coupon struct {
	ID            string     `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	RestaurantID  string     `json:"restaurant_id" gorm:"uniqueIndex:idx_coupon_restaurant_code;type:varchar(64)" validate:"required,max=64"`
	Code          string     `json:"code" gorm:"uniqueIndex:idx_coupon_restaurant_code;type:varchar(40)" validate:"required,min=3,max=40"`
	DiscountType  string     `json:"discount_type" gorm:"type:varchar(12)" validate:"required,oneof=fixed percentage"`
	DiscountValue float64    `json:"discount_value" validate:"required,gt=0"`
	MinOrderValue float64    `json:"min_order_value" validate:"gte=0"`
	MaxUses       int        `json:"max_uses" validate:"gte=0"` // 0 means unlimited
	UsedCount     int        `json:"used_count"`
	ValidFrom     *time.Time `json:"valid_from,omitempty"`
	ValidUntil    *time.Time `json:"valid_until,omitempty"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// AppliedCoupon is what the cart keeps after a successful validation.
type AppliedCoupon struct {
	Code         string  `json:"code"`
	DiscountType string  `json:"discount_type,omitempty"`
	Value        float64 `json:"value,omitempty"`
}

func (c *Coupon) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
