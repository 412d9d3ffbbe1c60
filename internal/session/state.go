package session

import (
	"context"

	"github.com/eleven-am/voice-companion/internal/realtime"
	"github.com/eleven-am/voice-companion/internal/shared"
)

type State string

const (
	StateIdle              State = "idle"
	StateRequestingMic     State = "requesting_mic"
	StateFetchingSignedURL State = "fetching_signed_url"
	StateConnecting        State = "connecting"
	StateConnected         State = "connected"
	StateSpeaking          State = "speaking"
	StateError             State = "error"
	StateStopped           State = "stopped"
)

func (s State) String() string {
	return string(s)
}

// Live reports whether a realtime link exists in this state.
func (s State) Live() bool {
	return s == StateConnected || s == StateSpeaking
}

// Message is one conversational turn observed on the session.
type Message struct {
	Role shared.Role `json:"role"`
	Text string      `json:"text"`
}

// Observer receives session events. Delivery is synchronous and in
// transition order; nil fields are skipped. Observers may call
// SetMicMuted, SetVolume and SendUtterance but must not call Start or
// Stop from inside a callback.
type Observer struct {
	OnStateChange func(State)
	OnMessage     func(Message)
	OnError       func(shared.ErrorRecord)
	OnOutputLevel func(float64)
}

// MicProbe is the microphone gate surface the machine needs.
type MicProbe interface {
	RequestAccess(ctx context.Context) error
}

// SignedURLProvider is the backend collaborator surface the machine needs.
type SignedURLProvider interface {
	SignedURL(ctx context.Context, agentID string) (string, error)
}

// Link is one live realtime connection to the agent.
type Link interface {
	SendUserMessage(text string) error
	SendContextUpdate(text string) error
	SetVolume(v float64)
	OutputLevel() float64
	Counters() realtime.Counters
	Close() error
}

// Dialer opens a Link at a signed URL.
type Dialer func(ctx context.Context, signedURL string, cb realtime.Callbacks) (Link, error)

// Snapshot is the externally visible Session value.
type Snapshot struct {
	SessionID string              `json:"session_id"`
	AgentID   string              `json:"agent_id"`
	State     State               `json:"state"`
	Volume    float64             `json:"volume"`
	MicMuted  bool                `json:"mic_muted"`
	LastError *shared.ErrorRecord `json:"last_error,omitempty"`
}
