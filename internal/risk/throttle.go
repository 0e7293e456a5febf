package risk

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const dateLayout = "2006-01-02"

// Throttle caps the number of trades per local calendar day.
type Throttle struct {
	mu    sync.Mutex
	limit int
	state ThrottleState
	store ThrottleStore
	key   string
}

// NewThrottle creates a throttle. A nil store keeps state in-process only.
func NewThrottle(limit int, store ThrottleStore, key string) *Throttle {
	return &Throttle{limit: limit, store: store, key: key}
}

// Load restores persisted state, if a store is configured.
func (t *Throttle) Load(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	st, ok, err := t.store.LoadThrottle(ctx, t.key)
	if err != nil {
		return fmt.Errorf("load throttle %s: %w", t.key, err)
	}
	if ok {
		t.mu.Lock()
		t.state = st
		t.mu.Unlock()
	}
	return nil
}

// Allow reports whether another trade fits today's budget.
func (t *Throttle) Allow(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover(now)
	return t.state.TradesToday < t.limit
}

// Record counts one executed trade and persists the new state. A persistence
// failure is returned but the in-memory count is kept.
func (t *Throttle) Record(ctx context.Context, now time.Time) (ThrottleState, error) {
	t.mu.Lock()
	t.rollover(now)
	t.state.TradesToday++
	t.state.LastTradeDate = now.Format(dateLayout)
	st := t.state
	t.mu.Unlock()

	if t.store != nil {
		if err := t.store.SaveThrottle(ctx, t.key, st); err != nil {
			return st, fmt.Errorf("save throttle %s: %w", t.key, err)
		}
	}
	return st, nil
}

// State returns a copy of the current counter.
func (t *Throttle) State() ThrottleState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Limit returns the configured daily cap.
func (t *Throttle) Limit() int { return t.limit }

func (t *Throttle) rollover(now time.Time) {
	if today := now.Format(dateLayout); t.state.LastTradeDate != today {
		t.state.TradesToday = 0
		t.state.LastTradeDate = today
	}
}
