package notes

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/voice-companion/internal/session"
	"github.com/eleven-am/voice-companion/internal/shared"
)

const (
	appendBudget = 5 * time.Second
	queueDepth   = 128
)

type queuedTurn struct {
	url  string
	role shared.Role
	text string
}

// Recorder appends conversation turns from the session to the notes of
// the page being studied. It is idle until SetActiveURL points it at a
// record; analysis of a new page repoints it. Turns are persisted by a
// single worker so they land in delivery order.
type Recorder struct {
	store *Store
	log   *slog.Logger

	mu          sync.Mutex
	activeURL   string
	unsubscribe func()
	queue       chan queuedTurn
	done        chan struct{}
}

func NewRecorder(store *Store, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	r := &Recorder{
		store: store,
		log:   log.With("component", "notes"),
		queue: make(chan queuedTurn, queueDepth),
		done:  make(chan struct{}),
	}
	go r.drain(r.queue, r.done)
	return r
}

// Attach subscribes to the machine's message events, restarting the
// persistence worker if a previous Detach stopped it.
func (r *Recorder) Attach(machine *session.Machine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
	if r.queue == nil {
		r.queue = make(chan queuedTurn, queueDepth)
		r.done = make(chan struct{})
		go r.drain(r.queue, r.done)
	}
	r.unsubscribe = machine.Subscribe(session.Observer{
		OnMessage: r.onMessage,
	})
}

// Detach unsubscribes and flushes any queued turns before returning.
func (r *Recorder) Detach() {
	r.mu.Lock()
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
	done := r.done
	if r.queue != nil {
		close(r.queue)
		r.queue = nil
		r.done = nil
	}
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (r *Recorder) SetActiveURL(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeURL = url
}

func (r *Recorder) ActiveURL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeURL
}

// onMessage runs inside observer dispatch, so it only enqueues; the
// worker does the write. The enqueue happens under the mutex so a
// concurrent Detach cannot close the channel out from under it.
func (r *Recorder) onMessage(msg session.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeURL == "" || r.queue == nil {
		return
	}
	select {
	case r.queue <- queuedTurn{url: r.activeURL, role: msg.Role, text: msg.Text}:
	default:
		r.log.Warn("turn queue full, dropping message", "url", r.activeURL)
	}
}

func (r *Recorder) drain(queue <-chan queuedTurn, done chan<- struct{}) {
	defer close(done)
	for turn := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), appendBudget)
		if _, err := r.store.AppendTurn(ctx, turn.url, turn.role, turn.text); err != nil {
			r.log.Error("failed to record turn", "error", err, "url", turn.url)
		}
		cancel()
	}
}
