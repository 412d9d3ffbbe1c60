package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/eleven-am/voice-companion/internal/realtime"
	"github.com/eleven-am/voice-companion/internal/shared"
	"github.com/google/uuid"
)

// Machine owns the single Session value and is the only component that
// mutates it. Every Start opens a new numbered attempt; async
// continuations re-check the attempt number so a superseded start's late
// resolution is discarded instead of corrupting the current session.
type Machine struct {
	gate MicProbe
	urls SignedURLProvider
	dial Dialer
	log  *slog.Logger

	// dispatchMu serializes transitions and observer delivery so events
	// arrive in the order transitions occur. It is acquired before mu.
	dispatchMu sync.Mutex

	mu        sync.Mutex
	sessionID string
	agentID   string
	state     State
	volume    float64
	micMuted  bool
	lastError *shared.ErrorRecord
	attempt   uint64
	link      Link
	cancel    context.CancelFunc

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObs   int
}

type MachineConfig struct {
	Gate    MicProbe
	Backend SignedURLProvider
	Dial    Dialer
	Log     *slog.Logger
}

func NewMachine(cfg MachineConfig) *Machine {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Machine{
		gate:      cfg.Gate,
		urls:      cfg.Backend,
		dial:      cfg.Dial,
		log:       log.With("component", "session"),
		state:     StateIdle,
		volume:    1,
		observers: make(map[int]Observer),
	}
}

// Subscribe registers an observer. Late subscribers only see transitions
// from this point forward. The returned function unsubscribes.
func (m *Machine) Subscribe(obs Observer) func() {
	m.obsMu.Lock()
	id := m.nextObs
	m.nextObs++
	m.observers[id] = obs
	m.obsMu.Unlock()

	return func() {
		m.obsMu.Lock()
		delete(m.observers, id)
		m.obsMu.Unlock()
	}
}

func (m *Machine) snapshotObservers() []Observer {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	out := make([]Observer, 0, len(m.observers))
	for _, obs := range m.observers {
		out = append(out, obs)
	}
	return out
}

// Start drives the connect chain: mic probe, signed URL, realtime dial.
// A live session is stopped first; each step's failure lands in Error
// with its cause. No internal retry.
func (m *Machine) Start(ctx context.Context, agentID string) error {
	if agentID == "" {
		return shared.NewError(shared.KindConfigurationError, "agentId is required")
	}

	m.dispatchMu.Lock()

	m.mu.Lock()
	m.teardownLocked()
	m.attempt++
	attempt := m.attempt
	actx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.sessionID = uuid.New().String()
	m.agentID = agentID
	m.transitionLocked(StateRequestingMic)
	m.mu.Unlock()

	m.deliverStateChange(StateRequestingMic)
	m.dispatchMu.Unlock()

	go m.runStart(actx, attempt, agentID)
	return nil
}

func (m *Machine) runStart(ctx context.Context, attempt uint64, agentID string) {
	if err := m.gate.RequestAccess(ctx); err != nil {
		m.fail(attempt, err)
		return
	}

	if !m.advance(attempt, StateFetchingSignedURL) {
		return
	}

	signedURL, err := m.urls.SignedURL(ctx, agentID)
	if err != nil {
		m.fail(attempt, err)
		return
	}

	if !m.advance(attempt, StateConnecting) {
		return
	}

	link, err := m.dial(ctx, signedURL, realtime.Callbacks{
		OnModeChange: func(speaking bool) { m.onModeChange(attempt, speaking) },
		OnMessage:    func(role shared.Role, text string) { m.onMessage(attempt, role, text) },
		OnDisconnect: func(err error) { m.onDisconnect(attempt, err) },
	})
	if err != nil {
		m.fail(attempt, err)
		return
	}

	m.dispatchMu.Lock()
	m.mu.Lock()
	if m.attempt != attempt {
		// A newer start or a stop superseded this attempt while the
		// dial was in flight.
		m.mu.Unlock()
		m.dispatchMu.Unlock()
		m.log.Info("discarding superseded connection attempt", "attempt", attempt)
		link.Close()
		return
	}
	m.link = link
	link.SetVolume(m.volume)
	m.transitionLocked(StateConnected)
	m.mu.Unlock()
	m.deliverStateChange(StateConnected)
	m.dispatchMu.Unlock()

	m.log.Info("session connected", "agent_id", agentID, "attempt", attempt)
}

// Stop is idempotent, safe from any state and during an in-flight Start;
// it always leaves the session Stopped.
func (m *Machine) Stop() {
	m.dispatchMu.Lock()

	m.mu.Lock()
	m.attempt++
	m.teardownLocked()
	changed := m.state != StateStopped
	m.transitionLocked(StateStopped)
	m.mu.Unlock()

	if changed {
		m.deliverStateChange(StateStopped)
	}
	m.dispatchMu.Unlock()
}

// teardownLocked cancels the in-flight attempt and releases the link.
func (m *Machine) teardownLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.link != nil {
		m.link.Close()
		m.link = nil
	}
}

// SendUtterance forwards text into the live conversation. Valid only in
// Connected or Speaking; callers wanting speak-once-connected semantics
// compose with the reconnect guard.
func (m *Machine) SendUtterance(text string) error {
	m.mu.Lock()
	if !m.state.Live() || m.link == nil {
		state := m.state
		m.mu.Unlock()
		return shared.NewError(shared.KindNotConnected, "session is "+state.String())
	}
	link := m.link
	m.mu.Unlock()

	if err := link.SendUserMessage(text); err != nil {
		return shared.WrapError(shared.KindConnectionRefused, "send utterance", err)
	}
	return nil
}

// SendContext pushes page context to the agent without a user turn.
func (m *Machine) SendContext(text string) error {
	m.mu.Lock()
	if !m.state.Live() || m.link == nil {
		state := m.state
		m.mu.Unlock()
		return shared.NewError(shared.KindNotConnected, "session is "+state.String())
	}
	link := m.link
	m.mu.Unlock()

	if err := link.SendContextUpdate(text); err != nil {
		return shared.WrapError(shared.KindConnectionRefused, "send context", err)
	}
	return nil
}

// SetVolume applies immediately when a link exists; otherwise the value
// becomes pending session config for the next connect.
func (m *Machine) SetVolume(v float64) {
	m.mu.Lock()
	m.volume = shared.ClampVolume(v)
	link := m.link
	v = m.volume
	m.mu.Unlock()

	if link != nil {
		link.SetVolume(v)
	}
}

func (m *Machine) SetMicMuted(muted bool) {
	m.mu.Lock()
	m.micMuted = muted
	m.mu.Unlock()
}

func (m *Machine) MicMuted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.micMuted
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		SessionID: m.sessionID,
		AgentID:   m.agentID,
		State:     m.state,
		Volume:    m.volume,
		MicMuted:  m.micMuted,
	}
	if m.lastError != nil {
		rec := *m.lastError
		snap.LastError = &rec
	}
	return snap
}

// OutputLevel reports the agent's current output level, 0 without a link.
func (m *Machine) OutputLevel() float64 {
	m.mu.Lock()
	link := m.link
	m.mu.Unlock()
	if link == nil {
		return 0
	}
	return link.OutputLevel()
}

// LinkCounters reports the live link's event counters, zero without one.
func (m *Machine) LinkCounters() realtime.Counters {
	m.mu.Lock()
	link := m.link
	m.mu.Unlock()
	if link == nil {
		return realtime.Counters{}
	}
	return link.Counters()
}

// PublishOutputLevel fans a sampled output level out to observers. The
// telemetry poller is the producer.
func (m *Machine) PublishOutputLevel(level float64) {
	for _, obs := range m.snapshotObservers() {
		if obs.OnOutputLevel != nil {
			obs.OnOutputLevel(level)
		}
	}
}

// transitionLocked records the new state. Any transition except into
// Error clears the attached error record.
func (m *Machine) transitionLocked(next State) {
	m.state = next
	if next != StateError {
		m.lastError = nil
	}
}

// advance moves a still-current attempt to the next connect-chain state.
// It reports false when the attempt has been superseded.
func (m *Machine) advance(attempt uint64, next State) bool {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	m.mu.Lock()
	if m.attempt != attempt {
		m.mu.Unlock()
		return false
	}
	m.transitionLocked(next)
	m.mu.Unlock()

	m.deliverStateChange(next)
	return true
}

func (m *Machine) fail(attempt uint64, err error) {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	m.mu.Lock()
	if m.attempt != attempt {
		m.mu.Unlock()
		m.log.Debug("discarding failure from superseded attempt", "attempt", attempt, "error", err)
		return
	}
	rec := shared.RecordFrom(err, m.state.String())
	m.lastError = &rec
	m.teardownLocked()
	m.transitionLocked(StateError)
	m.mu.Unlock()

	m.log.Warn("session failed", "kind", rec.Kind, "during", rec.OccurredDuring, "error", err)

	m.deliverStateChange(StateError)
	for _, obs := range m.snapshotObservers() {
		if obs.OnError != nil {
			obs.OnError(rec)
		}
	}
}

func (m *Machine) onModeChange(attempt uint64, speaking bool) {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	m.mu.Lock()
	if m.attempt != attempt || !m.state.Live() {
		m.mu.Unlock()
		return
	}
	next := StateConnected
	if speaking {
		next = StateSpeaking
	}
	if m.state == next {
		m.mu.Unlock()
		return
	}
	m.transitionLocked(next)
	m.mu.Unlock()

	m.deliverStateChange(next)
}

func (m *Machine) onMessage(attempt uint64, role shared.Role, text string) {
	m.mu.Lock()
	stale := m.attempt != attempt
	m.mu.Unlock()
	if stale {
		return
	}

	msg := Message{Role: role, Text: text}
	for _, obs := range m.snapshotObservers() {
		if obs.OnMessage != nil {
			obs.OnMessage(msg)
		}
	}
}

func (m *Machine) onDisconnect(attempt uint64, err error) {
	if err == nil {
		// Local close; Stop already accounted for it.
		return
	}
	m.fail(attempt, shared.WrapError(shared.KindConnectionRefused, "realtime link lost", err))
}

func (m *Machine) deliverStateChange(state State) {
	for _, obs := range m.snapshotObservers() {
		if obs.OnStateChange != nil {
			obs.OnStateChange(state)
		}
	}
}
