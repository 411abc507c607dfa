// Package cart holds a customer's shopping cart: lines, the applied coupon and derived totals,
// persisted to a kv.Store after every change.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"cardapio/internal/kv"
	"cardapio/internal/models"

	"go.uber.org/zap"
)

// Storage keys, one per concern.
const (
	KeyItems      = "cart"
	KeyRestaurant = "restaurantId"
	KeyCoupon     = "coupon"
)

// CouponResult is what a validator hands back for an accepted code.
type CouponResult struct {
	Coupon   models.AppliedCoupon `json:"coupon"`
	Discount float64              `json:"discount"`
}

// CouponValidator checks a code against the restaurant's coupons for the given order value.
// Rejections should be returned as *ValidationError.
type CouponValidator interface {
	ValidateCoupon(ctx context.Context, code, restaurantID string, orderValue float64) (*CouponResult, error)
}

// Line is a cart item together with its identity and line total.
type Line struct {
	Key string `json:"key"`
	models.CartItem
	LineTotal float64 `json:"line_total"`
}

// Snapshot is a read-only copy of the cart state.
type Snapshot struct {
	RestaurantID string                `json:"restaurant_id,omitempty"`
	Lines        []Line                `json:"lines"`
	CouponCode   string                `json:"coupon_code,omitempty"`
	Coupon       *models.AppliedCoupon `json:"coupon,omitempty"`
	Totals
}

// Store is the cart state container. It is safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	kv        kv.Store
	validator CouponValidator
	logger    *zap.Logger

	items        []models.CartItem
	restaurantID string
	couponCode   string
	coupon       *models.AppliedCoupon
	discount     float64

	// generation changes whenever the coupon state is reset, so that a validation started
	// before the reset cannot apply its result afterwards.
	generation uint64
}

type persistedCoupon struct {
	Coupon   models.AppliedCoupon `json:"coupon"`
	Discount float64              `json:"discount"`
}

// NewStore creates an empty cart on top of store. Call Load to restore persisted state.
func NewStore(store kv.Store, validator CouponValidator, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		kv:        store,
		validator: validator,
		logger:    logger,
	}
}

// Load replaces the in-memory state with what is persisted. A coupon without cart lines is
// ignored. A coupon validation in flight is discarded when the reload changes the cart.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []models.CartItem
	raw, found, err := s.kv.Get(ctx, KeyItems)
	if err != nil {
		return fmt.Errorf("failed to load cart: %w", err)
	}
	if found {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return fmt.Errorf("failed to decode cart: %w", err)
		}
	}

	restaurantID, _, err := s.kv.Get(ctx, KeyRestaurant)
	if err != nil {
		return fmt.Errorf("failed to load restaurant: %w", err)
	}

	var coupon *persistedCoupon
	if len(items) > 0 {
		raw, found, err = s.kv.Get(ctx, KeyCoupon)
		if err != nil {
			return fmt.Errorf("failed to load coupon: %w", err)
		}
		if found {
			coupon = &persistedCoupon{}
			if err := json.Unmarshal([]byte(raw), coupon); err != nil {
				return fmt.Errorf("failed to decode coupon: %w", err)
			}
		}
	}

	if s.restaurantID != restaurantID || !reflect.DeepEqual(s.items, items) {
		s.generation++
	}
	s.items = items
	s.restaurantID = restaurantID
	s.couponCode = ""
	s.coupon = nil
	s.discount = 0
	if coupon != nil {
		s.coupon = &coupon.Coupon
		s.discount = coupon.Discount
	}
	return nil
}

// AddItem merges item into the line with the same product and option set, or appends a new
// line. Selecting the same option twice is rejected.
func (s *Store) AddItem(ctx context.Context, item models.CartItem) error {
	if item.Product.ID == "" {
		return ErrMissingProduct
	}
	if item.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if dup, ok := duplicateChoice(item.SelectedOptions); ok {
		return fmt.Errorf("%w: %q in %q", ErrDuplicateOption, dup.option, dup.group)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if sameLine(s.items[i], item) {
			s.items[i].Quantity += item.Quantity
			return s.persistLocked(ctx)
		}
	}

	item.SelectedOptions = append([]models.SelectedOption(nil), item.SelectedOptions...)
	s.items = append(s.items, item)
	return s.persistLocked(ctx)
}

// RemoveItem drops every line of productID. Unknown ids are a no-op.
func (s *Store) RemoveItem(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0]
	for _, item := range s.items {
		if item.Product.ID != productID {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(s.items) {
		return nil
	}
	s.items = kept
	return s.persistLocked(ctx)
}

// UpdateItemQuantity sets the quantity of the line identified by lineKey; a quantity of zero
// or less removes the line. Unknown keys are a no-op.
func (s *Store) UpdateItemQuantity(ctx context.Context, lineKey string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(lineKey)
	if i < 0 {
		return nil
	}
	if quantity <= 0 {
		s.items = append(s.items[:i], s.items[i+1:]...)
	} else {
		s.items[i].Quantity = quantity
	}
	return s.persistLocked(ctx)
}

// UpdateItemNotes sets the free-text notes of the line identified by lineKey.
func (s *Store) UpdateItemNotes(ctx context.Context, lineKey, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(lineKey)
	if i < 0 {
		return nil
	}
	s.items[i].Notes = notes
	return s.persistLocked(ctx)
}

// Clear empties the cart and drops any coupon.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.resetCouponLocked()
	return s.persistLocked(ctx)
}

// SetRestaurant scopes the cart to a restaurant. Switching restaurants empties the cart.
func (s *Store) SetRestaurant(ctx context.Context, restaurantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.restaurantID == restaurantID {
		return nil
	}
	if s.restaurantID != "" && len(s.items) > 0 {
		s.logger.Info("restaurant changed, clearing cart",
			zap.String("from", s.restaurantID), zap.String("to", restaurantID))
		s.items = nil
	}
	s.restaurantID = restaurantID
	s.resetCouponLocked()
	return s.persistLocked(ctx)
}

// SetCouponCode records the code the customer typed; it is applied by ApplyCoupon.
func (s *Store) SetCouponCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.couponCode = code
	s.generation++
}

// ApplyCoupon validates the pending coupon code against the current subtotal. On failure the
// cart is left unchanged. If the coupon state was reset while validation was in flight the
// result is discarded and ErrStaleCoupon is returned.
func (s *Store) ApplyCoupon(ctx context.Context) (*CouponResult, error) {
	s.mu.Lock()
	code := s.couponCode
	s.mu.Unlock()
	return s.apply(ctx, code)
}

// ApplyCouponCode validates code and applies it in one step. Unlike SetCouponCode followed by
// ApplyCoupon, a rejected code is never recorded and a validation already in flight is not
// invalidated.
func (s *Store) ApplyCouponCode(ctx context.Context, code string) (*CouponResult, error) {
	return s.apply(ctx, code)
}

func (s *Store) apply(ctx context.Context, code string) (*CouponResult, error) {
	s.mu.Lock()
	code = strings.TrimSpace(code)
	restaurantID := s.restaurantID
	subtotal := ComputeTotals(s.items, 0).TotalPrice
	generation := s.generation
	s.mu.Unlock()

	if code == "" {
		return nil, NewValidationError(ErrEmptyCouponCode)
	}
	if restaurantID == "" {
		return nil, NewValidationError(ErrMissingRestaurant)
	}

	result, err := s.validator.ValidateCoupon(ctx, code, restaurantID, subtotal)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return nil, verr
		}
		return nil, fmt.Errorf("coupon validation failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != generation {
		s.logger.Info("dropping stale coupon validation", zap.String("code", code))
		return nil, ErrStaleCoupon
	}
	coupon := result.Coupon
	s.coupon = &coupon
	s.discount = result.Discount
	s.couponCode = ""
	if err := s.persistLocked(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveCoupon drops the applied coupon, its discount and the pending code.
func (s *Store) RemoveCoupon(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetCouponLocked()
	return s.persistLocked(ctx)
}

// Totals returns the derived totals.
func (s *Store) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComputeTotals(s.items, s.discount)
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]Line, 0, len(s.items))
	for _, item := range s.items {
		item.SelectedOptions = append([]models.SelectedOption(nil), item.SelectedOptions...)
		lines = append(lines, Line{
			Key:       ItemKey(item),
			CartItem:  item,
			LineTotal: Money(LineTotal(item)),
		})
	}
	var coupon *models.AppliedCoupon
	if s.coupon != nil {
		c := *s.coupon
		coupon = &c
	}
	return Snapshot{
		RestaurantID: s.restaurantID,
		Lines:        lines,
		CouponCode:   s.couponCode,
		Coupon:       coupon,
		Totals:       ComputeTotals(s.items, s.discount),
	}
}

func (s *Store) indexLocked(lineKey string) int {
	for i := range s.items {
		if ItemKey(s.items[i]) == lineKey {
			return i
		}
	}
	return -1
}

func (s *Store) resetCouponLocked() {
	s.coupon = nil
	s.discount = 0
	s.couponCode = ""
	s.generation++
}

// persistLocked writes all three keys. An empty cart removes its key, and with it the coupon.
func (s *Store) persistLocked(ctx context.Context) error {
	if len(s.items) == 0 {
		if s.coupon != nil || s.couponCode != "" {
			s.resetCouponLocked()
		}
		if err := s.kv.Remove(ctx, KeyItems); err != nil {
			return fmt.Errorf("failed to remove cart: %w", err)
		}
		if err := s.kv.Remove(ctx, KeyCoupon); err != nil {
			return fmt.Errorf("failed to remove coupon: %w", err)
		}
	} else {
		raw, err := json.Marshal(s.items)
		if err != nil {
			return fmt.Errorf("failed to encode cart: %w", err)
		}
		if err := s.kv.Set(ctx, KeyItems, string(raw)); err != nil {
			return fmt.Errorf("failed to save cart: %w", err)
		}
		if err := s.persistCouponLocked(ctx); err != nil {
			return err
		}
	}

	if s.restaurantID == "" {
		if err := s.kv.Remove(ctx, KeyRestaurant); err != nil {
			return fmt.Errorf("failed to remove restaurant: %w", err)
		}
		return nil
	}
	if err := s.kv.Set(ctx, KeyRestaurant, s.restaurantID); err != nil {
		return fmt.Errorf("failed to save restaurant: %w", err)
	}
	return nil
}

func (s *Store) persistCouponLocked(ctx context.Context) error {
	if s.coupon == nil {
		if err := s.kv.Remove(ctx, KeyCoupon); err != nil {
			return fmt.Errorf("failed to remove coupon: %w", err)
		}
		return nil
	}
	raw, err := json.Marshal(persistedCoupon{Coupon: *s.coupon, Discount: s.discount})
	if err != nil {
		return fmt.Errorf("failed to encode coupon: %w", err)
	}
	if err := s.kv.Set(ctx, KeyCoupon, string(raw)); err != nil {
		return fmt.Errorf("failed to save coupon: %w", err)
	}
	return nil
}
