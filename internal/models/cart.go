package models

// CartProduct is the slice of a Product a cart line needs to price and display itself.
type CartProduct struct {
	ID       string  `json:"id" validate:"required"`
	Name     string  `json:"name"`
	Price    float64 `json:"price" validate:"gte=0"`
	ImageURL string  `json:"image_url,omitempty"`
}

// OptionChoice is the chosen option inside a SelectedOption.
type OptionChoice struct {
	Name  string  `json:"name" validate:"required"`
	Price float64 `json:"price" validate:"gte=0"`
}

// SelectedOption is an add-on picked from one of the product's option groups.
type SelectedOption struct {
	GroupName string       `json:"group_name" validate:"required"`
	Option    OptionChoice `json:"option"`
}

// CartItem is one cart line: a product, its selected options, a quantity and free-text notes.
type CartItem struct {
	Product         CartProduct      `json:"product" validate:"required"`
	Quantity        int              `json:"quantity" validate:"gte=1"`
	Notes           string           `json:"notes,omitempty" validate:"omitempty,max=280"`
	SelectedOptions []SelectedOption `json:"selected_options,omitempty" validate:"dive"`
}
