package engine

import (
	"errors"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// ErrStrategyExists is returned when registering a strategy ID that
// is already registered.
var ErrStrategyExists = errors.New("engine: strategy already registered")

// ErrStrategyNotFound is returned by engine calls keyed by strategy ID
// when no such strategy is registered.
var ErrStrategyNotFound = errors.New("engine: strategy not registered")

// registration holds one registered strategy's execution context: the
// strategy itself and the dedicated worker pool its callbacks run on
// (SPEC_FULL.md §4.7 "Strategy execution threads"), so a slow callback
// stalls neither the book-update publisher nor another strategy.
type registration struct {
	strategy Strategy
	pool     *ants.Pool
}

// Registry is the engine's strategy directory: RegisterStrategy stores
// a Strategy behind a narrow StrategyHandle and hands callback
// dispatch off to a per-strategy ants.Pool. Grounded on the teacher's
// internal/architecture/fx/workerpool/worker_pool.go (named worker
// pools keyed by owner) and internal/strategy/plugin/interface.go
// (capability-interface registration).
type Registry struct {
	mu     sync.RWMutex
	regs   map[string]*registration
	logger *zap.Logger
}

// NewRegistry creates an empty strategy registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{regs: make(map[string]*registration), logger: logger}
}

// Register adds s to the registry with a pool of poolSize workers
// (runtime.NumCPU() if poolSize <= 0, per SPEC_FULL.md §4.7's default).
func (r *Registry) Register(s Strategy, poolSize int) error {
	if poolSize <= 0 {
		poolSize = runtime.NumCPU()
	}
	id := s.ID()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.regs[id]; exists {
		return ErrStrategyExists
	}
	pool, err := ants.NewPool(poolSize, ants.WithNonblocking(true), ants.WithPanicHandler(func(rec interface{}) {
		r.logger.Error("strategy callback panicked", zap.String("strategy_id", id), zap.Any("recover", rec))
	}))
	if err != nil {
		return err
	}
	r.regs[id] = &registration{strategy: s, pool: pool}
	return nil
}

// Unregister removes a strategy and releases its worker pool.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	reg, ok := r.regs[id]
	if ok {
		delete(r.regs, id)
	}
	r.mu.Unlock()
	if ok {
		reg.pool.Release()
	}
}

// Get returns the registered strategy for id.
func (r *Registry) Get(id string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.regs[id]
	if !ok {
		return nil, false
	}
	return reg.strategy, true
}

// submit runs fn on the strategy id's dedicated pool, dropping the
// callback if the strategy was unregistered, or with a log line if the
// pool is saturated, rather than blocking the caller (the book/bus
// writer paths must never stall on a strategy).
func (r *Registry) submit(id string, fn func()) {
	r.mu.RLock()
	reg, ok := r.regs[id]
	r.mu.RUnlock()
	if !ok {
		return
	}
	if err := reg.pool.Submit(fn); err != nil {
		r.logger.Warn("dropped strategy callback", zap.String("strategy_id", id), zap.Error(err))
	}
}

// Broadcast runs fn against every registered strategy, each on its own pool.
func (r *Registry) Broadcast(fn func(Strategy)) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.regs))
	for id := range r.regs {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	for _, id := range ids {
		id := id
		r.submit(id, func() {
			if s, ok := r.Get(id); ok {
				fn(s)
			}
		})
	}
}

// Notify runs fn against the single strategy id, if registered.
func (r *Registry) Notify(id string, fn func(Strategy)) {
	r.submit(id, func() {
		if s, ok := r.Get(id); ok {
			fn(s)
		}
	})
}

// Close releases every registered strategy's worker pool.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, reg := range r.regs {
		reg.pool.Release()
		delete(r.regs, id)
	}
}
