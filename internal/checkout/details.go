package checkout

import (
	"strings"

	"cardapio/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Details are collected in two steps: who is ordering, then how the order is delivered.
type Details struct {
	CustomerName   string `json:"customer_name" validate:"required,min=2,max=100"`
	CustomerPhone  string `json:"customer_phone" validate:"required,min=8,max=32"`
	DeliveryMethod string `json:"delivery_method" validate:"required,oneof=delivery pickup"`
	Address        string `json:"address,omitempty" validate:"required_if=DeliveryMethod delivery,max=300"`
}

// ValidateIdentity checks the first step.
func (d Details) ValidateIdentity() error {
	return validate.StructPartial(d, "CustomerName", "CustomerPhone")
}

// ValidateDelivery checks the second step. An address is required for delivery.
func (d Details) ValidateDelivery() error {
	return validate.StructPartial(d, "DeliveryMethod", "Address")
}

// Validate checks both steps.
func (d Details) Validate() error {
	return validate.Struct(d)
}

func (d Details) normalized() Details {
	d.CustomerName = strings.TrimSpace(d.CustomerName)
	d.CustomerPhone = strings.TrimSpace(d.CustomerPhone)
	d.Address = strings.TrimSpace(d.Address)
	if d.DeliveryMethod == models.DeliveryMethodPickup {
		d.Address = ""
	}
	return d
}
