// Package telemetry samples the live session at a fixed interval so the
// control surface can expose level meters and link counters without
// touching the session machine on every request.
package telemetry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/voice-companion/internal/realtime"
	"github.com/eleven-am/voice-companion/internal/session"
)

const defaultInterval = 250 * time.Millisecond

// Sampler is the read-only slice of the session machine the poller needs.
type Sampler interface {
	State() session.State
	OutputLevel() float64
	LinkCounters() realtime.Counters
	PublishOutputLevel(level float64)
}

// Snapshot is the latest observation. Zero value means nothing has been
// sampled yet.
type Snapshot struct {
	State       session.State     `json:"state"`
	OutputLevel float64           `json:"outputLevel"`
	Counters    realtime.Counters `json:"counters"`
	SampledAt   time.Time         `json:"sampledAt"`
}

type Poller struct {
	sampler  Sampler
	interval time.Duration
	log      *slog.Logger

	mu     sync.Mutex
	latest Snapshot
	stop   chan struct{}
	done   chan struct{}
}

func New(sampler Sampler, interval time.Duration, log *slog.Logger) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		sampler:  sampler,
		interval: interval,
		log:      log.With("component", "telemetry"),
	}
}

// Start begins sampling. Calling Start on a running poller is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(p.stop, p.done)
}

// Stop halts sampling and waits for the loop to exit. Idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Snapshot returns the most recent sample.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest
}

func (p *Poller) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.sample()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.sample()
		}
	}
}

// sample reads the machine and publishes the level back through it so
// observers see the same value the snapshot reports. A panic here would
// only mean a torn-down machine; it is absorbed and the tick skipped.
func (p *Poller) sample() {
	defer func() {
		if r := recover(); r != nil {
			p.log.Warn("sample skipped", "reason", r)
		}
	}()

	snap := Snapshot{
		State:       p.sampler.State(),
		OutputLevel: p.sampler.OutputLevel(),
		Counters:    p.sampler.LinkCounters(),
		SampledAt:   time.Now(),
	}
	p.sampler.PublishOutputLevel(snap.OutputLevel)

	p.mu.Lock()
	p.latest = snap
	p.mu.Unlock()
}
