package adapters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"yoyaku/internal/core"
	"yoyaku/internal/store"
)

// FallbackStore fronts a remote store with a circuit breaker and keeps a
// local mirror. Reads are served from the mirror while the remote is failing;
// writes require the remote and are copied to the mirror once accepted.
type FallbackStore struct {
	remote store.Store
	local  store.Store
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

var (
	_ store.Store  = (*FallbackStore)(nil)
	_ store.Getter = (*FallbackStore)(nil)
)

// BreakerSettings tunes the circuit breaker around the remote store.
type BreakerSettings struct {
	Name                string
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// NewFallbackStore wraps remote with local as its mirror.
func NewFallbackStore(remote, local store.Store, settings BreakerSettings, logger *slog.Logger) *FallbackStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackStore{
		remote: remote,
		local:  local,
		cb:     newBreaker(settings, logger),
		logger: logger,
	}
}

func newBreaker(s BreakerSettings, logger *slog.Logger) *gobreaker.CircuitBreaker {
	if s.Name == "" {
		s.Name = "remote-store"
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 3
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		// Domain outcomes mean the remote answered.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrDuplicate)
		},
	})
}

// State reports the breaker state, for readiness checks.
func (f *FallbackStore) State() gobreaker.State {
	return f.cb.State()
}

// LoadAll implements store.Loader. A successful remote read refreshes the mirror.
func (f *FallbackStore) LoadAll(ctx context.Context) ([]core.Reservation, error) {
	out, err := f.cb.Execute(func() (interface{}, error) {
		return f.remote.LoadAll(ctx)
	})
	if err == nil {
		rs := out.([]core.Reservation)
		if mErr := f.local.ReplaceAll(ctx, rs); mErr != nil {
			f.logger.WarnContext(ctx, "Failed to refresh local mirror", "error", mErr)
		}
		return rs, nil
	}

	f.logger.WarnContext(ctx, "Remote read failed, serving local mirror", "error", err)
	rs, lErr := f.local.LoadAll(ctx)
	if lErr != nil {
		return nil, fmt.Errorf("%w: remote: %v; local: %v", store.ErrUnavailable, err, lErr)
	}
	return rs, nil
}

// Get implements store.Getter.
func (f *FallbackStore) Get(ctx context.Context, id string) (core.Reservation, error) {
	out, err := f.cb.Execute(func() (interface{}, error) {
		return store.Find(ctx, f.remote, id)
	})
	if err == nil {
		return out.(core.Reservation), nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return core.Reservation{}, err
	}
	f.logger.WarnContext(ctx, "Remote lookup failed, serving local mirror", "id", id, "error", err)
	return store.Find(ctx, f.local, id)
}

// Add implements store.Writer.
func (f *FallbackStore) Add(ctx context.Context, r core.Reservation) error {
	if err := f.write(ctx, func() error { return f.remote.Add(ctx, r) }); err != nil {
		return err
	}
	f.mirror(ctx, "add", r.ID, func() error {
		err := f.local.Add(ctx, r)
		if errors.Is(err, store.ErrDuplicate) {
			return f.local.Update(ctx, r)
		}
		return err
	})
	return nil
}

// Update implements store.Writer.
func (f *FallbackStore) Update(ctx context.Context, r core.Reservation) error {
	if err := f.write(ctx, func() error { return f.remote.Update(ctx, r) }); err != nil {
		return err
	}
	f.mirror(ctx, "update", r.ID, func() error {
		err := f.local.Update(ctx, r)
		if errors.Is(err, store.ErrNotFound) {
			return f.local.Add(ctx, r)
		}
		return err
	})
	return nil
}

// Delete implements store.Writer.
func (f *FallbackStore) Delete(ctx context.Context, id string) error {
	if err := f.write(ctx, func() error { return f.remote.Delete(ctx, id) }); err != nil {
		return err
	}
	f.mirror(ctx, "delete", id, func() error {
		err := f.local.Delete(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	})
	return nil
}

// ReplaceAll implements store.Replacer.
func (f *FallbackStore) ReplaceAll(ctx context.Context, rs []core.Reservation) error {
	if err := f.write(ctx, func() error { return f.remote.ReplaceAll(ctx, rs) }); err != nil {
		return err
	}
	f.mirror(ctx, "replace", "", func() error { return f.local.ReplaceAll(ctx, rs) })
	return nil
}

// write runs fn through the breaker. Domain errors pass through; anything
// else is reported as store.ErrUnavailable.
func (f *FallbackStore) write(ctx context.Context, fn func() error) error {
	_, err := f.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err == nil || errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrDuplicate) || errors.Is(err, store.ErrUnavailable) {
		return err
	}
	f.logger.WarnContext(ctx, "Remote write failed", "error", err, "breaker", f.cb.State().String())
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}

func (f *FallbackStore) mirror(ctx context.Context, op, id string, fn func() error) {
	if err := fn(); err != nil {
		f.logger.WarnContext(ctx, "Failed to mirror write locally", "operation", op, "id", id, "error", err)
	}
}
