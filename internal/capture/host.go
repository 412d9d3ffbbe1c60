// Package capture is the PortAudio-backed microphone host. It gives the
// gate something real to probe on desktop installs; permission semantics
// are approximated since PortAudio only reports device availability.
package capture

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/eleven-am/voice-companion/internal/micgate"
	"github.com/eleven-am/voice-companion/internal/resample"
)

const (
	captureRate     = 16000
	captureChannels = 1
	frameSize       = 320 // 20ms at 16kHz
)

type Host struct {
	log *slog.Logger

	mu          sync.Mutex
	initialized bool
}

func NewHost(log *slog.Logger) *Host {
	if log == nil {
		log = slog.Default()
	}
	return &Host{log: log.With("component", "capture")}
}

func (h *Host) ensureInit() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initialized {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	h.initialized = true
	return nil
}

// Shutdown releases PortAudio. Safe to call when never initialized.
func (h *Host) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initialized {
		portaudio.Terminate()
		h.initialized = false
	}
}

func (h *Host) OpenCapture(ctx context.Context) (micgate.CaptureStream, error) {
	if err := h.ensureInit(); err != nil {
		return nil, err
	}

	shim, err := resample.Create(captureChannels, captureRate, captureRate)
	if err != nil {
		return nil, err
	}

	buf := make([]float32, frameSize)
	stream, err := portaudio.OpenDefaultStream(captureChannels, 0, captureRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, err
	}
	return &Stream{stream: stream, shim: shim, buf: buf}, nil
}

// QueryPermission reports what PortAudio can know: whether a default
// input device is visible. OS-level permission prompts are outside its
// reach, so absence reads as denied and presence as granted.
func (h *Host) QueryPermission(ctx context.Context) (micgate.PermissionState, error) {
	if err := h.ensureInit(); err != nil {
		return micgate.PermissionUnknown, err
	}
	dev, err := portaudio.DefaultInputDevice()
	if err != nil || dev == nil {
		return micgate.PermissionDenied, nil
	}
	return micgate.PermissionGranted, nil
}

// Stream is one live capture. Frames pass through the resample shim so
// every consumer sees the pipeline's canonical format.
type Stream struct {
	stream *portaudio.Stream
	shim   *resample.Shim
	buf    []float32

	mu     sync.Mutex
	closed bool
}

// ReadFrame blocks for the next 20ms frame.
func (s *Stream) ReadFrame() ([]float32, error) {
	if err := s.stream.Read(); err != nil {
		return nil, err
	}
	return s.shim.Process(s.buf), nil
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.stream.Stop()
	return s.stream.Close()
}
