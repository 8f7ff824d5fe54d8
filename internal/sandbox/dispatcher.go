package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"reflex/internal/tools"
)

var (
	// ErrCallLimit means the plan asked for more capability calls than
	// its per-run ceiling. Checked at issuance, before the call runs.
	ErrCallLimit = errors.New("capability call limit reached for this run")

	// ErrUnknownCapability means the plan named a capability that is
	// not registered.
	ErrUnknownCapability = errors.New("unknown capability")

	// ErrRunAbandoned means the run was cut off (timeout) and any
	// in-flight capability result must be discarded.
	ErrRunAbandoned = errors.New("run abandoned")
)

// Dispatcher is the single gateway between a running plan and the
// capability registry. One dispatcher per run; the counter and the
// abandoned flag never carry over.
type Dispatcher struct {
	mu        sync.Mutex
	registry  *tools.Registry
	limit     int
	issued    int
	abandoned bool
	logger    *zap.Logger
}

// NewDispatcher creates a dispatcher with a per-run call ceiling.
func NewDispatcher(registry *tools.Registry, limit int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{registry: registry, limit: limit, logger: logger}
}

// Call invokes a capability on behalf of the plan. The ceiling is
// enforced when the call is issued: the limit-exceeding call itself is
// refused rather than allowed to run one past the budget. A failed
// capability lookup spends no budget; only forwarded invocations
// count. Results that land after the run was abandoned are discarded.
func (d *Dispatcher) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	d.mu.Lock()
	if d.abandoned {
		d.mu.Unlock()
		return "", ErrRunAbandoned
	}
	if d.issued >= d.limit {
		d.mu.Unlock()
		d.logger.Warn("Capability call refused, budget spent",
			zap.String("capability", name), zap.Int("limit", d.limit))
		return "", ErrCallLimit
	}
	if !d.registry.Has(name) {
		d.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrUnknownCapability, name)
	}
	d.issued++
	d.mu.Unlock()

	result, err := d.registry.Invoke(ctx, name, args)

	d.mu.Lock()
	abandoned := d.abandoned
	d.mu.Unlock()
	if abandoned {
		d.logger.Debug("Discarding late capability result",
			zap.String("capability", name))
		return "", ErrRunAbandoned
	}

	if err != nil {
		return "", err
	}
	return result.Value, nil
}

// Abandon marks the run dead. Subsequent and in-flight calls return
// ErrRunAbandoned instead of leaking results into a finished run.
func (d *Dispatcher) Abandon() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.abandoned = true
}

// Issued returns how many calls were issued so far.
func (d *Dispatcher) Issued() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.issued
}
