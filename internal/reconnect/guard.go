package reconnect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eleven-am/voice-companion/internal/session"
	"github.com/eleven-am/voice-companion/internal/shared"
)

const defaultPollInterval = 150 * time.Millisecond

// Controller is the slice of the session machine the guard drives.
type Controller interface {
	State() session.State
	Start(ctx context.Context, agentID string) error
	Stop()
}

// ConnectTimeoutError reports that the session never reached Connected
// within the caller's budget, and what it was doing instead.
type ConnectTimeoutError struct {
	LastObservedState session.State
}

func (e *ConnectTimeoutError) Error() string {
	return fmt.Sprintf("connect timeout: last observed state %s", e.LastObservedState)
}

// Guard gives callers a bounded wait for Connected plus one clean
// restart when the session looks stuck mid-teardown. Retry of the whole
// operation stays with the caller; the guard never loops.
type Guard struct {
	ctrl     Controller
	interval time.Duration
	log      *slog.Logger
}

func New(ctrl Controller, interval time.Duration, log *slog.Logger) *Guard {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Guard{
		ctrl:     ctrl,
		interval: interval,
		log:      log.With("component", "reconnect"),
	}
}

// EnsureConnectedThenAct runs action as soon as the session is live. If
// it is not, and is not already freshly connecting, the guard restarts
// the session once (a stale stop failing is absorbed; it is not itself
// fatal) and then polls until Connected or the timeout elapses. On
// timeout the action is never invoked.
//
// Declaring timeout just before a slow connect completes is an accepted
// false negative; the caller can retry the whole operation.
func (g *Guard) EnsureConnectedThenAct(ctx context.Context, agentID string, timeout time.Duration, action func() error) error {
	if g.ctrl.State().Live() {
		return action()
	}

	if g.ctrl.State() != session.StateConnecting {
		g.log.Info("session not live, restarting", "state", g.ctrl.State())
		g.ctrl.Stop()
		if err := g.ctrl.Start(ctx, agentID); err != nil {
			return err
		}
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(g.interval)
	defer tick.Stop()

	for {
		if g.ctrl.State().Live() {
			return action()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			last := g.ctrl.State()
			g.log.Warn("gave up waiting for connection", "last_state", last)
			return shared.WrapError(shared.KindConnectTimeout,
				"session did not connect in time",
				&ConnectTimeoutError{LastObservedState: last})
		case <-tick.C:
		}
	}
}
