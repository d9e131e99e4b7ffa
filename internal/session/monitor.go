package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Policy decides when an idle session expires.
type Policy struct {
	// IdleTimeout applies to sessions in ordinary stages.
	IdleTimeout time.Duration

	// CriticalTimeout applies to sessions in the middle of a multi-turn
	// exchange (see stage.Stage.Critical).
	CriticalTimeout time.Duration
}

// DefaultPolicy returns the standard timeouts.
func DefaultPolicy() Policy {
	return Policy{
		IdleTimeout:     30 * time.Minute,
		CriticalTimeout: 2 * time.Hour,
	}
}

// Timeout returns the idle allowance of a session in the given state.
func (p Policy) Timeout(sess *Session) time.Duration {
	if sess.State.Stage().Critical() {
		return max(p.CriticalTimeout, p.IdleTimeout)
	}
	return p.IdleTimeout
}

// Expired reports whether sess has been idle longer than its allowance.
func (p Policy) Expired(sess *Session, now time.Time) bool {
	return sess.Idle(now) > p.Timeout(sess)
}

// Monitor periodically sweeps idle sessions out of a Store.
type Monitor struct {
	store    *Store
	policy   Policy
	interval time.Duration
	logger   *zap.Logger

	// OnExpire, if set, is called for every expired session after it has
	// been removed.
	OnExpire func(Expired)
}

// NewMonitor creates a Monitor. A non-positive interval defaults to one
// minute.
func NewMonitor(store *Store, policy Policy, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		store:    store,
		policy:   policy,
		interval: interval,
		logger:   logger.Named("monitor"),
	}
}

// SweepOnce runs a single sweep.
func (m *Monitor) SweepOnce(ctx context.Context) ([]Expired, error) {
	expired, err := m.store.Sweep(ctx, m.policy)
	if err != nil {
		return nil, err
	}
	for _, e := range expired {
		m.logger.Info("session expired",
			zap.String("user", e.UserID),
			zap.Stringer("session", e.SessionID),
			zap.Stringer("stage", e.Stage),
			zap.Duration("idle", e.Idle),
		)
		if m.OnExpire != nil {
			m.OnExpire(e)
		}
	}
	return expired, nil
}

// Run sweeps on every tick until ctx is done or the store is closed. It
// returns nil in both cases.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := m.SweepOnce(ctx); err != nil {
				if errors.Is(err, ErrClosed) || ctx.Err() != nil {
					return nil
				}
				m.logger.Warn("sweep failed", zap.Error(err))
			}
		}
	}
}
