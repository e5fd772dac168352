package worker

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Expirer clears a session whose token has expired.
type Expirer interface {
	ExpireIfNeeded() bool
}

// ExpiryWatcher periodically checks the session token's expiry.
type ExpiryWatcher struct {
	session  Expirer
	clock    clockwork.Clock
	interval time.Duration
	logger   *zap.Logger
}

// NewExpiryWatcher builds a watcher ticking every interval.
func NewExpiryWatcher(session Expirer, clock clockwork.Clock, interval time.Duration, logger *zap.Logger) *ExpiryWatcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpiryWatcher{session: session, clock: clock, interval: interval, logger: logger.Named("expiry_watcher")}
}

// Run blocks until ctx is done.
func (w *ExpiryWatcher) Run(ctx context.Context) {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if w.session.ExpireIfNeeded() {
				w.logger.Info("session token expired")
			}
		}
	}
}

// StartExpiryWatcher runs the watcher in its own goroutine.
func StartExpiryWatcher(ctx context.Context, w *ExpiryWatcher) {
	if w == nil || w.session == nil {
		return
	}
	go w.Run(ctx)
}
