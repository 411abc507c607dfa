package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cardapio/internal/cart"
	"cardapio/internal/models"
	"cardapio/internal/repositories"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Reasons a coupon is refused. They reach callers wrapped in *cart.ValidationError.
var (
	ErrCouponNotFound     = errors.New("invalid coupon code")
	ErrCouponInactive     = errors.New("coupon is not active")
	ErrCouponNotStarted   = errors.New("coupon is not valid yet")
	ErrCouponExpired      = errors.New("coupon has expired")
	ErrCouponExhausted    = errors.New("coupon usage limit reached")
	ErrCouponMinimumValue = errors.New("order value is below the coupon minimum")
	ErrInvalidCoupon      = errors.New("invalid coupon")
)

// CouponService validates and manages restaurant coupons.
type CouponService struct {
	repo   repositories.CouponRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewCouponService creates a new CouponService.
func NewCouponService(repo repositories.CouponRepository, logger *zap.Logger) *CouponService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CouponService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// ValidateCoupon checks code for restaurantID against orderValue and computes the discount.
// It implements cart.CouponValidator.
func (s *CouponService) ValidateCoupon(ctx context.Context, code, restaurantID string, orderValue float64) (*cart.CouponResult, error) {
	coupon, err := s.repo.GetByCode(ctx, restaurantID, code)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, cart.NewValidationError(ErrCouponNotFound)
		}
		return nil, err
	}

	if err := s.checkUsable(coupon, orderValue); err != nil {
		return nil, err
	}

	return &cart.CouponResult{
		Coupon: models.AppliedCoupon{
			Code:         coupon.Code,
			DiscountType: coupon.DiscountType,
			Value:        coupon.DiscountValue,
		},
		Discount: Discount(coupon, orderValue),
	}, nil
}

func (s *CouponService) checkUsable(c *models.Coupon, orderValue float64) error {
	now := s.now()
	switch {
	case !c.Active:
		return cart.NewValidationError(ErrCouponInactive)
	case c.ValidFrom != nil && now.Before(*c.ValidFrom):
		return cart.NewValidationError(ErrCouponNotStarted)
	case c.ValidUntil != nil && now.After(*c.ValidUntil):
		return cart.NewValidationError(ErrCouponExpired)
	case c.MaxUses > 0 && c.UsedCount >= c.MaxUses:
		return cart.NewValidationError(ErrCouponExhausted)
	case orderValue < c.MinOrderValue:
		return &cart.ValidationError{
			Message: fmt.Sprintf("minimum order value for this coupon is %.2f", c.MinOrderValue),
			Err:     ErrCouponMinimumValue,
		}
	}
	return nil
}

// Discount is the amount c takes off orderValue, never more than orderValue itself.
func Discount(c *models.Coupon, orderValue float64) float64 {
	value := decimal.NewFromFloat(orderValue)
	var d decimal.Decimal
	if c.DiscountType == models.DiscountPercentage {
		d = value.Mul(decimal.NewFromFloat(c.DiscountValue)).Div(decimal.NewFromInt(100))
	} else {
		d = decimal.NewFromFloat(c.DiscountValue)
	}
	if d.GreaterThan(value) {
		d = value
	}
	return cart.Money(d)
}

// Redeem records one use of the coupon behind code.
func (s *CouponService) Redeem(ctx context.Context, restaurantID, code string) error {
	coupon, err := s.repo.GetByCode(ctx, restaurantID, code)
	if err != nil {
		return err
	}
	return s.repo.IncrementUsage(ctx, coupon.ID)
}

// ListCoupons returns every coupon of a restaurant.
func (s *CouponService) ListCoupons(ctx context.Context, restaurantID string) ([]models.Coupon, error) {
	return s.repo.ListByRestaurant(ctx, restaurantID)
}

// GetCoupon returns a coupon by ID.
func (s *CouponService) GetCoupon(ctx context.Context, id string) (*models.Coupon, error) {
	return s.repo.GetByID(ctx, id)
}

// CreateCoupon stores a new coupon after checking its rules are coherent.
func (s *CouponService) CreateCoupon(ctx context.Context, coupon *models.Coupon) error {
	if err := checkRules(coupon); err != nil {
		return err
	}
	coupon.UsedCount = 0
	return s.repo.Create(ctx, coupon)
}

// UpdateCoupon replaces a coupon's rules. Usage counters are kept.
func (s *CouponService) UpdateCoupon(ctx context.Context, coupon *models.Coupon) error {
	if err := checkRules(coupon); err != nil {
		return err
	}
	return s.repo.Update(ctx, coupon)
}

// DeleteCoupon deletes a coupon by ID.
func (s *CouponService) DeleteCoupon(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func checkRules(c *models.Coupon) error {
	if c.DiscountType == models.DiscountPercentage && c.DiscountValue > 100 {
		return fmt.Errorf("%w: percentage discount cannot exceed 100", ErrInvalidCoupon)
	}
	if c.ValidFrom != nil && c.ValidUntil != nil && c.ValidUntil.Before(*c.ValidFrom) {
		return fmt.Errorf("%w: valid_until is before valid_from", ErrInvalidCoupon)
	}
	return nil
}
