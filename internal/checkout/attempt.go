package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"cardapio/internal/cart"
	"cardapio/internal/client"
	"cardapio/internal/events"
	"cardapio/internal/kv"
	"cardapio/internal/models"
	"cardapio/internal/services"

	"github.com/google/uuid"
)

// Tier names, also recorded as the order source.
const (
	TierService   = "service"
	TierPrimary   = "primary"
	TierAlternate = "alternate"
	TierQueue     = "queue"
	TierLocal     = "local"
)

// PendingOrdersKey holds the orders saved by LocalAttempt.
const PendingOrdersKey = "pendingOrders"

// ErrRejected marks an order refused on its merits. Falling back would not help, so the chain
// stops.
var ErrRejected = errors.New("order rejected")

// Attempt is one way of submitting an order.
type Attempt interface {
	Name() string
	Submit(ctx context.Context, order models.Order) (*models.Order, error)
}

// deferred is implemented by attempts that do not store the order in the database themselves.
type deferred interface {
	Deferred() bool
}

func isDeferred(a Attempt) bool {
	d, ok := a.(deferred)
	return ok && d.Deferred()
}

func rejected(err error) error {
	return fmt.Errorf("%w: %w", ErrRejected, err)
}

// ServiceAttempt stores the order through the in-process OrderService.
type ServiceAttempt struct {
	orders *services.OrderService
}

func NewServiceAttempt(orders *services.OrderService) *ServiceAttempt {
	return &ServiceAttempt{orders: orders}
}

func (a *ServiceAttempt) Name() string { return TierService }

func (a *ServiceAttempt) Submit(ctx context.Context, order models.Order) (*models.Order, error) {
	created, err := a.orders.CreateOrder(ctx, order, TierService)
	if err != nil {
		var verr *cart.ValidationError
		if errors.As(err, &verr) || errors.Is(err, services.ErrInvalidOrder) {
			return nil, rejected(err)
		}
		return nil, err
	}
	return created, nil
}

// APIAttempt posts the order to an endpoint of a remote deployment.
type APIAttempt struct {
	api  *client.APIClient
	name string
	path string
}

func NewAPIAttempt(api *client.APIClient, name, path string) *APIAttempt {
	return &APIAttempt{api: api, name: name, path: path}
}

func (a *APIAttempt) Name() string { return a.name }

func (a *APIAttempt) Submit(ctx context.Context, order models.Order) (*models.Order, error) {
	created, err := a.api.SubmitOrder(ctx, a.path, &order)
	if err != nil {
		var serr *client.StatusError
		if errors.As(err, &serr) && serr.Rejected() {
			return nil, rejected(err)
		}
		return nil, err
	}
	return created, nil
}

// QueueAttempt hands the order to the broker. A consumer stores it later.
type QueueAttempt struct {
	publisher events.Publisher
}

func NewQueueAttempt(publisher events.Publisher) *QueueAttempt {
	return &QueueAttempt{publisher: publisher}
}

func (a *QueueAttempt) Name() string   { return TierQueue }
func (a *QueueAttempt) Deferred() bool { return true }

func (a *QueueAttempt) Submit(ctx context.Context, order models.Order) (*models.Order, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	order.Status = models.OrderStatusPending
	order.Source = TierQueue
	if err := events.PublishJSON(ctx, a.publisher, events.OrderQueued, order); err != nil {
		return nil, err
	}
	return &order, nil
}

// LocalAttempt appends the order to a list kept in a kv.Store. It is the last tier and only
// fails when the store does.
type LocalAttempt struct {
	mu    sync.Mutex
	store kv.Store
}

func NewLocalAttempt(store kv.Store) *LocalAttempt {
	return &LocalAttempt{store: store}
}

func (a *LocalAttempt) Name() string   { return TierLocal }
func (a *LocalAttempt) Deferred() bool { return true }

func (a *LocalAttempt) Submit(ctx context.Context, order models.Order) (*models.Order, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	pending, err := a.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	order.Status = models.OrderStatusPending
	order.Source = TierLocal
	pending = append(pending, order)
	if err := a.saveLocked(ctx, pending); err != nil {
		return nil, err
	}
	return &order, nil
}

// Pending lists the orders saved locally, oldest first.
func (a *LocalAttempt) Pending(ctx context.Context) ([]models.Order, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loadLocked(ctx)
}

// Remove drops a locally saved order. Unknown ids are a no-op.
func (a *LocalAttempt) Remove(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	pending, err := a.loadLocked(ctx)
	if err != nil {
		return err
	}
	kept := pending[:0]
	for _, o := range pending {
		if o.ID != id {
			kept = append(kept, o)
		}
	}
	if len(kept) == len(pending) {
		return nil
	}
	return a.saveLocked(ctx, kept)
}

func (a *LocalAttempt) loadLocked(ctx context.Context) ([]models.Order, error) {
	raw, found, err := a.store.Get(ctx, PendingOrdersKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending orders: %w", err)
	}
	if !found {
		return []models.Order{}, nil
	}
	var pending []models.Order
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		return nil, fmt.Errorf("failed to decode pending orders: %w", err)
	}
	return pending, nil
}

func (a *LocalAttempt) saveLocked(ctx context.Context, pending []models.Order) error {
	if len(pending) == 0 {
		return a.store.Remove(ctx, PendingOrdersKey)
	}
	raw, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("failed to encode pending orders: %w", err)
	}
	if err := a.store.Set(ctx, PendingOrdersKey, string(raw)); err != nil {
		return fmt.Errorf("failed to save pending orders: %w", err)
	}
	return nil
}
