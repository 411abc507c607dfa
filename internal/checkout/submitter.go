package checkout

import (
	"context"
	"errors"
	"fmt"

	"cardapio/internal/models"

	"go.uber.org/zap"
)

// ErrSubmissionFailed is returned when every tier failed. It wraps each tier's error.
var ErrSubmissionFailed = errors.New("order submission failed")

// Result tells which tier accepted the order. SavedInDB is false when the order was only
// queued or saved locally.
type Result struct {
	Order     *models.Order `json:"order"`
	Tier      string        `json:"tier"`
	SavedInDB bool          `json:"saved_in_db"`
}

// Submitter runs its attempts in order until one succeeds.
type Submitter struct {
	attempts []Attempt
	logger   *zap.Logger
}

func NewSubmitter(logger *zap.Logger, attempts ...Attempt) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{attempts: attempts, logger: logger}
}

// Tiers returns the attempt names in execution order.
func (s *Submitter) Tiers() []string {
	names := make([]string, len(s.attempts))
	for i, a := range s.attempts {
		names[i] = a.Name()
	}
	return names
}

// Submit tries each attempt in turn. A rejection stops the chain immediately.
func (s *Submitter) Submit(ctx context.Context, order models.Order) (*Result, error) {
	return s.submit(ctx, order, s.attempts)
}

func (s *Submitter) submit(ctx context.Context, order models.Order, attempts []Attempt) (*Result, error) {
	var errs []error
	for _, a := range attempts {
		stored, err := a.Submit(ctx, order)
		if err == nil {
			if len(errs) > 0 {
				s.logger.Info("order accepted by fallback tier", zap.String("tier", a.Name()), zap.String("order_id", stored.ID))
			}
			return &Result{Order: stored, Tier: a.Name(), SavedInDB: !isDeferred(a)}, nil
		}
		if errors.Is(err, ErrRejected) {
			return nil, err
		}
		s.logger.Warn("order submission tier failed", zap.String("tier", a.Name()), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", a.Name(), err))
	}
	return nil, fmt.Errorf("%w: %w", ErrSubmissionFailed, errors.Join(errs...))
}

// Resubmit retries every order held by local through the tiers that store orders in the
// database. Orders that get through are removed from local. It returns how many did.
func (s *Submitter) Resubmit(ctx context.Context, local *LocalAttempt) (int, error) {
	var durable []Attempt
	for _, a := range s.attempts {
		if !isDeferred(a) {
			durable = append(durable, a)
		}
	}
	if len(durable) == 0 {
		return 0, nil
	}

	pending, err := local.Pending(ctx)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, order := range pending {
		if _, err := s.submit(ctx, order, durable); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return done, ctxErr
			}
			s.logger.Warn("pending order still not accepted", zap.String("order_id", order.ID), zap.Error(err))
			continue
		}
		if err := local.Remove(ctx, order.ID); err != nil {
			return done, err
		}
		done++
	}
	return done, nil
}
