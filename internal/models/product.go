package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a menu entry sold by a restaurant.
type Product struct {
	ID           string        `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	RestaurantID string        `json:"restaurant_id" gorm:"index;type:varchar(64)" validate:"required,max=64"`
	CategoryID   string        `json:"category_id" gorm:"index;type:varchar(36)" validate:"omitempty,uuid"`
	Name         string        `json:"name" validate:"required,min=2,max=100"`
	Description  string        `json:"description" validate:"omitempty,max=500"`
	Price        float64       `json:"price" validate:"required,gt=0"`
	ImageURL     string        `json:"image_url,omitempty" validate:"omitempty,url"`
	Available    bool          `json:"available"`
	OptionGroups []OptionGroup `json:"option_groups,omitempty" gorm:"foreignKey:ProductID" validate:"dive"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// OptionGroup is a named set of add-on choices attached to a product, e.g. "Size".
type OptionGroup struct {
	ID             string   `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ProductID      string   `json:"product_id" gorm:"index;type:varchar(36)"`
	Name           string   `json:"name" validate:"required,max=60"`
	Required       bool     `json:"required"`
	MultipleChoice bool     `json:"multiple_choice"`
	MinChoices     int      `json:"min_choices" validate:"gte=0"`
	MaxChoices     int      `json:"max_choices" validate:"gte=0"`
	Options        []Option `json:"options" gorm:"foreignKey:OptionGroupID" validate:"dive"`
}

// Option is a single add-on inside an option group.
type Option struct {
	ID            string  `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OptionGroupID string  `json:"option_group_id" gorm:"index;type:varchar(36)"`
	Name          string  `json:"name" validate:"required,max=60"`
	Price         float64 `json:"price" validate:"gte=0"`
}

// Category groups products on a restaurant's menu.
type Category struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	RestaurantID string    `json:"restaurant_id" gorm:"index;type:varchar(64)" validate:"required,max=64"`
	Name         string    `json:"name" validate:"required,min=2,max=60"`
	Position     int       `json:"position" validate:"gte=0"`
	CreatedAt    time.Time `json:"created_at"`
}

// Menu is the public view of a restaurant's catalogue.
type Menu struct {
	RestaurantID string     `json:"restaurant_id"`
	Categories   []Category `json:"categories"`
	Products     []Product  `json:"products"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

func (g *OptionGroup) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	return nil
}

func (o *Option) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return nil
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
