package automute

import (
	"log/slog"
	"sync"

	"github.com/eleven-am/voice-companion/internal/session"
)

// MicController is the slice of the session machine the synchronizer
// drives.
type MicController interface {
	SetMicMuted(muted bool)
	State() session.State
}

// Synchronizer keeps the local microphone muted while the agent speaks,
// so the agent does not hear itself. While enabled it owns mute state on
// Speaking transitions; disabled, it never touches the mic and the user
// is the only writer.
type Synchronizer struct {
	mic MicController
	log *slog.Logger

	mu      sync.Mutex
	enabled bool
	prev    session.State

	unsubscribe func()
}

func New(mic MicController, enabled bool, log *slog.Logger) *Synchronizer {
	if log == nil {
		log = slog.Default()
	}
	return &Synchronizer{
		mic:     mic,
		log:     log.With("component", "automute"),
		enabled: enabled,
	}
}

// Attach subscribes to the machine's state changes. Call once at wiring
// time; Detach undoes it.
func (s *Synchronizer) Attach(machine *session.Machine) {
	s.unsubscribe = machine.Subscribe(session.Observer{
		OnStateChange: s.onStateChange,
	})
}

func (s *Synchronizer) Detach() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

func (s *Synchronizer) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetEnabled flips the policy and reconciles immediately. Enabling while
// the agent is mid-speech mutes now. Disabling while the agent is
// mid-speech leaves the mic muted until the user unmutes, so flipping
// the flag cannot open a feedback path.
func (s *Synchronizer) SetEnabled(enabled bool) {
	s.mu.Lock()
	was := s.enabled
	s.enabled = enabled
	s.mu.Unlock()

	if was == enabled {
		return
	}

	if enabled && s.mic.State() == session.StateSpeaking {
		s.mic.SetMicMuted(true)
	}
}

func (s *Synchronizer) onStateChange(state session.State) {
	s.mu.Lock()
	enabled := s.enabled
	prev := s.prev
	s.prev = state
	s.mu.Unlock()

	if !enabled {
		return
	}

	switch {
	case state == session.StateSpeaking:
		s.mic.SetMicMuted(true)
	case prev == session.StateSpeaking:
		s.mic.SetMicMuted(false)
	}
}
