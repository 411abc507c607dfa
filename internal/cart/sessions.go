package cart

import (
	"context"
	"sync"
	"time"

	"cardapio/internal/kv"

	"go.uber.org/zap"
)

// DefaultIdleTimeout is how long an unused session stays in memory.
const DefaultIdleTimeout = 30 * time.Minute

// Sessions hands out one Store per session id, each persisted under its own key prefix.
// Every Get reloads the cart from storage, so expired keys and writes made by other
// instances are always seen. Stores idle for longer than the idle timeout are evicted.
type Sessions struct {
	mu        sync.Mutex
	kv        kv.Store
	validator CouponValidator
	logger    *zap.Logger
	idle      time.Duration
	now       func() time.Time
	sessions  map[string]*session
}

type session struct {
	store    *Store
	lastUsed time.Time
}

func NewSessions(store kv.Store, validator CouponValidator, logger *zap.Logger) *Sessions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sessions{
		kv:        store,
		validator: validator,
		logger:    logger,
		idle:      DefaultIdleTimeout,
		now:       time.Now,
		sessions:  make(map[string]*session),
	}
}

// SetIdleTimeout changes how long unused sessions are kept in memory.
func (s *Sessions) SetIdleTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idle = d
}

// Get returns the cart of session id with its persisted state freshly loaded.
// Concurrent requests for the same id in this process share one Store.
func (s *Sessions) Get(ctx context.Context, id string) (*Store, error) {
	s.mu.Lock()
	now := s.now()
	s.evictLocked(now)
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{store: NewStore(kv.Namespace(s.kv, "session:"+id), s.validator, s.logger.With(zap.String("session", id)))}
		s.sessions[id] = sess
	}
	sess.lastUsed = now
	s.mu.Unlock()

	if err := sess.store.Load(ctx); err != nil {
		return nil, err
	}
	return sess.store, nil
}

// Len is the number of sessions held in memory.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Sessions) evictLocked(now time.Time) {
	for id, sess := range s.sessions {
		if now.Sub(sess.lastUsed) > s.idle {
			delete(s.sessions, id)
		}
	}
}
