package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eleven-am/voice-companion/internal/shared"
	"github.com/gorilla/websocket"
)

const (
	writeWait           = 10 * time.Second
	defaultAgentSilence = 600 * time.Millisecond
	defaultHandshake    = 10 * time.Second

	// levelFullScale is the audio-event payload size treated as level 1.0.
	levelFullScale = 16 * 1024
	levelHalfLife  = 400 * time.Millisecond
)

// Conn is one live websocket link to the remote conversational agent,
// dialed at a backend-issued signed URL.
type Conn struct {
	ws  *websocket.Conn
	cfg Config
	cb  Callbacks
	log *slog.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	speaking bool
	volume   float64
	level    float64
	levelAt  time.Time

	counters struct {
		audioEvents   atomic.Uint64
		messages      atomic.Uint64
		pings         atomic.Uint64
		interruptions atomic.Uint64
		dropped       atomic.Uint64
	}

	silence   *time.Timer
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the signed realtime URL and starts the read loop.
// Callbacks fire from that loop in wire order.
func Dial(ctx context.Context, signedURL string, cfg Config, cb Callbacks, log *slog.Logger) (*Conn, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.AgentSilence <= 0 {
		cfg.AgentSilence = defaultAgentSilence
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshake
	}

	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, signedURL, nil)
	if err != nil {
		return nil, shared.WrapError(shared.KindConnectionRefused, "realtime dial failed", err)
	}

	c := &Conn{
		ws:     ws,
		cfg:    cfg,
		cb:     cb,
		log:    log.With("component", "realtime"),
		volume: 1,
		done:   make(chan struct{}),
	}

	go c.readPump()
	return c, nil
}

func (c *Conn) readPump() {
	defer func() {
		c.stopSilenceTimer()
		c.setSpeaking(false)
	}()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, message, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				err = nil
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					c.log.Error("websocket read error", "error", err)
				}
			}
			c.closeWith(err)
			return
		}

		c.handleEvent(message)
	}
}

func (c *Conn) handleEvent(data []byte) {
	var evt inboundEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.counters.dropped.Add(1)
		c.log.Debug("unparseable event dropped", "error", err)
		return
	}

	switch evt.Type {
	case "conversation_initiation_metadata":
		c.log.Debug("conversation initiated")

	case "ping":
		c.counters.pings.Add(1)
		eventID := 0
		if evt.PingEvent != nil {
			eventID = evt.PingEvent.EventID
		}
		if err := c.write(outboundMessage{Type: "pong", EventID: eventID}); err != nil {
			c.log.Debug("pong failed", "error", err)
		}

	case "audio":
		c.counters.audioEvents.Add(1)
		c.onAudioEvent(evt)

	case "interruption":
		c.counters.interruptions.Add(1)
		c.stopSilenceTimer()
		c.setSpeaking(false)

	case "user_transcript":
		c.counters.messages.Add(1)
		text := ""
		if evt.UserTranscriptionEvent != nil {
			text = evt.UserTranscriptionEvent.UserTranscript
		}
		c.emitMessage(shared.RoleUser, text)

	case "agent_response":
		c.counters.messages.Add(1)
		text := ""
		if evt.AgentResponseEvent != nil {
			text = evt.AgentResponseEvent.AgentResponse
		}
		c.emitMessage(shared.RoleAgent, text)

	default:
		if evt.Text == "" {
			c.counters.dropped.Add(1)
			return
		}
		c.counters.messages.Add(1)
		c.emitMessage(classifyRole(evt.Role), evt.Text)
	}
}

// classifyRole maps a free-form role field onto the two known speakers.
// Anything that matches neither pattern is attributed to the agent; the
// upstream protocol leaves the tie-break unspecified.
func classifyRole(role string) shared.Role {
	switch role {
	case "user", "human", "you":
		return shared.RoleUser
	}
	return shared.RoleAgent
}

func (c *Conn) emitMessage(role shared.Role, text string) {
	if text == "" {
		return
	}
	if c.cb.OnMessage != nil {
		c.cb.OnMessage(role, text)
	}
}

func (c *Conn) onAudioEvent(evt inboundEvent) {
	size := 0
	if evt.AudioEvent != nil {
		if decoded, err := base64.StdEncoding.DecodeString(evt.AudioEvent.AudioBase64); err == nil {
			size = len(decoded)
		} else {
			size = len(evt.AudioEvent.AudioBase64)
		}
	}

	c.bumpLevel(size)
	c.setSpeaking(true)
	c.resetSilenceTimer()
}

func (c *Conn) setSpeaking(speaking bool) {
	c.mu.Lock()
	changed := c.speaking != speaking
	c.speaking = speaking
	c.mu.Unlock()

	if changed && c.cb.OnModeChange != nil {
		c.cb.OnModeChange(speaking)
	}
}

func (c *Conn) resetSilenceTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.silence == nil {
		c.silence = time.AfterFunc(c.cfg.AgentSilence, func() {
			c.setSpeaking(false)
		})
		return
	}
	c.silence.Reset(c.cfg.AgentSilence)
}

func (c *Conn) stopSilenceTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.silence != nil {
		c.silence.Stop()
	}
}

func (c *Conn) bumpLevel(bytes int) {
	level := float64(bytes) / levelFullScale
	if level > 1 {
		level = 1
	}

	c.mu.Lock()
	if current := c.decayedLevelLocked(time.Now()); current > level {
		level = current
	}
	c.level = level
	c.levelAt = time.Now()
	c.mu.Unlock()
}

func (c *Conn) decayedLevelLocked(now time.Time) float64 {
	if c.levelAt.IsZero() {
		return 0
	}
	elapsed := now.Sub(c.levelAt)
	return c.level * math.Exp2(-float64(elapsed)/float64(levelHalfLife))
}

// OutputLevel reports the current agent output level in [0, 1], scaled
// by the session volume and decaying between audio events.
func (c *Conn) OutputLevel() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.decayedLevelLocked(time.Now()) * c.volume
}

func (c *Conn) SetVolume(v float64) {
	c.mu.Lock()
	c.volume = shared.ClampVolume(v)
	c.mu.Unlock()
}

func (c *Conn) IsSpeaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

func (c *Conn) Counters() Counters {
	return Counters{
		AudioEvents:   c.counters.audioEvents.Load(),
		Messages:      c.counters.messages.Load(),
		Pings:         c.counters.pings.Load(),
		Interruptions: c.counters.interruptions.Load(),
		Dropped:       c.counters.dropped.Load(),
	}
}

// SendUserMessage forwards a typed user utterance into the conversation.
func (c *Conn) SendUserMessage(text string) error {
	return c.write(outboundMessage{Type: "user_message", Text: text})
}

// SendContextUpdate pushes non-conversational context (page content) to
// the agent without producing a user turn.
func (c *Conn) SendContextUpdate(text string) error {
	return c.write(outboundMessage{Type: "contextual_update", Text: text})
}

func (c *Conn) write(msg outboundMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) closeWith(err error) {
	c.closeOnce.Do(func() {
		close(c.done)
		c.stopSilenceTimer()
		_ = c.ws.Close()
		if c.cb.OnDisconnect != nil {
			c.cb.OnDisconnect(err)
		}
	})
}

// Close tears the link down. Idempotent; a local close reports a nil
// disconnect error.
func (c *Conn) Close() error {
	c.closeWith(nil)
	return nil
}
