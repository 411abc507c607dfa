package cart

import "errors"

var (
	ErrEmptyCouponCode   = errors.New("coupon code is required")
	ErrMissingRestaurant = errors.New("restaurant is not set")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrMissingProduct    = errors.New("product id is required")
	ErrDuplicateOption   = errors.New("option selected more than once")
	ErrStaleCoupon       = errors.New("coupon validation superseded by a newer cart change")
)

// ValidationError is returned when a coupon cannot be applied: a blank code, an unknown
// restaurant, or a rejection by the validator. Message is safe to show to the customer.
type ValidationError struct {
	Message string
	Err     error
}

// NewValidationError wraps err, using its text as the customer-facing message.
func NewValidationError(err error) *ValidationError {
	return &ValidationError{Message: err.Error(), Err: err}
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
