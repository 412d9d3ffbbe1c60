package realtime

import (
	"time"

	"github.com/eleven-am/voice-companion/internal/shared"
)

type Config struct {
	// AgentSilence is how long after the last audio event the agent is
	// considered done speaking.
	AgentSilence time.Duration

	HandshakeTimeout time.Duration
}

// Callbacks is how the session machine observes the realtime link.
// All callbacks are invoked from the connection's read loop, one at a
// time, in wire order.
type Callbacks struct {
	// OnModeChange fires when the agent starts (true) or stops (false)
	// producing audio output.
	OnModeChange func(speaking bool)
	// OnMessage delivers a conversational turn with its classified role.
	OnMessage func(role shared.Role, text string)
	// OnDisconnect fires once, when the link is gone. err is nil on a
	// clean local Close.
	OnDisconnect func(err error)
}

// Counters are monotonic event tallies sampled by the telemetry poller.
type Counters struct {
	AudioEvents   uint64 `json:"audio_events"`
	Messages      uint64 `json:"messages"`
	Pings         uint64 `json:"pings"`
	Interruptions uint64 `json:"interruptions"`
	Dropped       uint64 `json:"dropped"`
}

type inboundEvent struct {
	Type string `json:"type"`

	UserTranscriptionEvent *struct {
		UserTranscript string `json:"user_transcript"`
	} `json:"user_transcription_event,omitempty"`

	AgentResponseEvent *struct {
		AgentResponse string `json:"agent_response"`
	} `json:"agent_response_event,omitempty"`

	AudioEvent *struct {
		AudioBase64 string `json:"audio_base_64"`
		EventID     int    `json:"event_id"`
	} `json:"audio_event,omitempty"`

	PingEvent *struct {
		EventID int `json:"event_id"`
	} `json:"ping_event,omitempty"`

	// Loosely-shaped fallback fields, consulted only when the typed
	// events above are absent.
	Role string `json:"role,omitempty"`
	Text string `json:"text,omitempty"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	EventID int    `json:"event_id,omitempty"`
}
