package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cardapio/internal/cart"
	"cardapio/internal/models"
	"cardapio/internal/repositories"
	"cardapio/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func activeCoupon(code, kind string, value float64) *models.Coupon {
	return &models.Coupon{ID: "c-" + code, RestaurantID: "r1", Code: code, DiscountType: kind, DiscountValue: value, Active: true}
}

func TestCouponService_ValidateCoupon_Fixed(t *testing.T) {
	repo := new(MockCouponRepository)
	service := services.NewCouponService(repo, nil)

	repo.On("GetByCode", "r1", "SAVE10").Return(activeCoupon("SAVE10", models.DiscountFixed, 10), nil).Once()

	result, err := service.ValidateCoupon(context.Background(), "SAVE10", "r1", 60)
	require.NoError(t, err)
	assert.Equal(t, 10.0, result.Discount)
	assert.Equal(t, "SAVE10", result.Coupon.Code)
	assert.Equal(t, models.DiscountFixed, result.Coupon.DiscountType)
	repo.AssertExpectations(t)
}

func TestCouponService_ValidateCoupon_Percentage(t *testing.T) {
	repo := new(MockCouponRepository)
	service := services.NewCouponService(repo, nil)

	repo.On("GetByCode", "r1", "OFF15").Return(activeCoupon("OFF15", models.DiscountPercentage, 15), nil).Once()

	result, err := service.ValidateCoupon(context.Background(), "OFF15", "r1", 89.9)
	require.NoError(t, err)
	assert.Equal(t, 13.49, result.Discount)
}

func TestCouponService_DiscountCappedAtOrderValue(t *testing.T) {
	assert.Equal(t, 20.0, services.Discount(activeCoupon("BIG", models.DiscountFixed, 50), 20))
	assert.Equal(t, 20.0, services.Discount(activeCoupon("ALL", models.DiscountPercentage, 100), 20))
}

func TestCouponService_ValidateCoupon_Rejections(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name    string
		coupon  func() *models.Coupon
		value   float64
		wantErr error
	}{
		{"inactive", func() *models.Coupon {
			c := activeCoupon("X", models.DiscountFixed, 5)
			c.Active = false
			return c
		}, 50, services.ErrCouponInactive},
		{"not started", func() *models.Coupon {
			c := activeCoupon("X", models.DiscountFixed, 5)
			c.ValidFrom = &future
			return c
		}, 50, services.ErrCouponNotStarted},
		{"expired", func() *models.Coupon {
			c := activeCoupon("X", models.DiscountFixed, 5)
			c.ValidUntil = &past
			return c
		}, 50, services.ErrCouponExpired},
		{"exhausted", func() *models.Coupon {
			c := activeCoupon("X", models.DiscountFixed, 5)
			c.MaxUses, c.UsedCount = 3, 3
			return c
		}, 50, services.ErrCouponExhausted},
		{"below minimum", func() *models.Coupon {
			c := activeCoupon("X", models.DiscountFixed, 5)
			c.MinOrderValue = 80
			return c
		}, 50, services.ErrCouponMinimumValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockCouponRepository)
			service := services.NewCouponService(repo, nil)
			repo.On("GetByCode", "r1", "X").Return(tt.coupon(), nil).Once()

			_, err := service.ValidateCoupon(context.Background(), "X", "r1", tt.value)

			var verr *cart.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NotEmpty(t, verr.Message)
		})
	}
}

func TestCouponService_ValidateCoupon_MinimumMessage(t *testing.T) {
	repo := new(MockCouponRepository)
	service := services.NewCouponService(repo, nil)
	c := activeCoupon("X", models.DiscountFixed, 5)
	c.MinOrderValue = 80
	repo.On("GetByCode", "r1", "X").Return(c, nil).Once()

	_, err := service.ValidateCoupon(context.Background(), "X", "r1", 50)
	assert.EqualError(t, err, "minimum order value for this coupon is 80.00")
}

func TestCouponService_ValidateCoupon_NotFound(t *testing.T) {
	repo := new(MockCouponRepository)
	service := services.NewCouponService(repo, nil)
	repo.On("GetByCode", "r1", "NOPE").Return(nil, fmt.Errorf("coupon NOPE not found: %w", repositories.ErrNotFound)).Once()

	_, err := service.ValidateCoupon(context.Background(), "NOPE", "r1", 50)
	var verr *cart.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, services.ErrCouponNotFound)
}

func TestCouponService_ValidateCoupon_RepositoryFailure(t *testing.T) {
	repo := new(MockCouponRepository)
	service := services.NewCouponService(repo, nil)
	dbErr := errors.New("database is locked")
	repo.On("GetByCode", "r1", "SAVE10").Return(nil, dbErr).Once()

	_, err := service.ValidateCoupon(context.Background(), "SAVE10", "r1", 50)
	assert.ErrorIs(t, err, dbErr)
	var verr *cart.ValidationError
	assert.False(t, errors.As(err, &verr))
}

func TestCouponService_CreateCoupon(t *testing.T) {
	repo := new(MockCouponRepository)
	service := services.NewCouponService(repo, nil)

	ok := activeCoupon("OK", models.DiscountPercentage, 20)
	ok.UsedCount = 9
	repo.On("Create", ok).Return(nil).Once()
	require.NoError(t, service.CreateCoupon(context.Background(), ok))
	assert.Zero(t, ok.UsedCount)

	tooMuch := activeCoupon("BAD", models.DiscountPercentage, 120)
	assert.ErrorIs(t, service.CreateCoupon(context.Background(), tooMuch), services.ErrInvalidCoupon)

	from := time.Now()
	until := from.Add(-time.Hour)
	backwards := activeCoupon("BAD", models.DiscountFixed, 5)
	backwards.ValidFrom, backwards.ValidUntil = &from, &until
	assert.ErrorIs(t, service.UpdateCoupon(context.Background(), backwards), services.ErrInvalidCoupon)

	repo.AssertNumberOfCalls(t, "Create", 1)
	repo.AssertNotCalled(t, "Update", mock.Anything)
}

func TestCouponService_Redeem(t *testing.T) {
	repo := new(MockCouponRepository)
	service := services.NewCouponService(repo, nil)

	repo.On("GetByCode", "r1", "SAVE10").Return(activeCoupon("SAVE10", models.DiscountFixed, 10), nil).Once()
	repo.On("IncrementUsage", "c-SAVE10").Return(nil).Once()

	require.NoError(t, service.Redeem(context.Background(), "r1", "SAVE10"))
	repo.AssertExpectations(t)
}
