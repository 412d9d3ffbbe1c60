package reconnect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eleven-am/voice-companion/internal/session"
	"github.com/eleven-am/voice-companion/internal/shared"
)

type fakeController struct {
	mu       sync.Mutex
	state    session.State
	startErr error
	starts   int
	stops    int

	// connectAfter flips the state to Connected that many polls after
	// Start is called. Zero means stay in the current state.
	connectAfter int
	polls        int
}

func (f *fakeController) State() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.connectAfter > 0 && f.starts > 0 && f.polls >= f.connectAfter {
		f.state = session.StateConnected
	}
	return f.state
}

func (f *fakeController) Start(ctx context.Context, agentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.state = session.StateConnecting
	return nil
}

func (f *fakeController) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.state = session.StateStopped
}

func TestGuardRunsImmediatelyWhenLive(t *testing.T) {
	ctrl := &fakeController{state: session.StateSpeaking}
	g := New(ctrl, time.Millisecond, nil)

	ran := false
	err := g.EnsureConnectedThenAct(context.Background(), "agent-1", time.Second, func() error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("EnsureConnectedThenAct: %v", err)
	}
	if !ran {
		t.Fatal("action did not run")
	}
	if ctrl.starts != 0 || ctrl.stops != 0 {
		t.Fatalf("live session was restarted: starts=%d stops=%d", ctrl.starts, ctrl.stops)
	}
}

func TestGuardRestartsStoppedSession(t *testing.T) {
	ctrl := &fakeController{state: session.StateIdle, connectAfter: 3}
	g := New(ctrl, time.Millisecond, nil)

	ran := false
	err := g.EnsureConnectedThenAct(context.Background(), "agent-1", time.Second, func() error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("EnsureConnectedThenAct: %v", err)
	}
	if !ran {
		t.Fatal("action did not run after reconnect")
	}
	if ctrl.stops != 1 || ctrl.starts != 1 {
		t.Fatalf("expected one stop and one start, got stops=%d starts=%d", ctrl.stops, ctrl.starts)
	}
}

func TestGuardDoesNotRestartWhileConnecting(t *testing.T) {
	ctrl := &fakeController{state: session.StateConnecting}
	g := New(ctrl, time.Millisecond, nil)

	err := g.EnsureConnectedThenAct(context.Background(), "agent-1", 20*time.Millisecond, func() error {
		return nil
	})
	if shared.KindOf(err) != shared.KindConnectTimeout {
		t.Fatalf("expected connect timeout, got %v", err)
	}
	if ctrl.stops != 0 || ctrl.starts != 0 {
		t.Fatalf("connecting session was restarted: stops=%d starts=%d", ctrl.stops, ctrl.starts)
	}
}

func TestGuardTimeoutNeverRunsAction(t *testing.T) {
	ctrl := &fakeController{state: session.StateError}
	g := New(ctrl, time.Millisecond, nil)

	ran := false
	err := g.EnsureConnectedThenAct(context.Background(), "agent-1", 20*time.Millisecond, func() error {
		ran = true
		return nil
	})
	if ran {
		t.Fatal("action ran despite timeout")
	}
	if shared.KindOf(err) != shared.KindConnectTimeout {
		t.Fatalf("expected connect timeout kind, got %v", err)
	}

	var cte *ConnectTimeoutError
	if !errors.As(err, &cte) {
		t.Fatalf("error does not carry ConnectTimeoutError: %v", err)
	}
	if cte.LastObservedState != session.StateConnecting {
		t.Fatalf("last observed state = %s, want %s", cte.LastObservedState, session.StateConnecting)
	}
}

func TestGuardPropagatesStartError(t *testing.T) {
	ctrl := &fakeController{
		state:    session.StateIdle,
		startErr: shared.NewError(shared.KindConfigurationError, "agent id is not configured"),
	}
	g := New(ctrl, time.Millisecond, nil)

	err := g.EnsureConnectedThenAct(context.Background(), "", time.Second, func() error {
		t.Fatal("action must not run")
		return nil
	})
	if shared.KindOf(err) != shared.KindConfigurationError {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestGuardHonorsContextCancellation(t *testing.T) {
	ctrl := &fakeController{state: session.StateError}
	g := New(ctrl, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := g.EnsureConnectedThenAct(ctx, "agent-1", time.Minute, func() error {
		t.Fatal("action must not run")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
