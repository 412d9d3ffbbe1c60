package micgate

import (
	"context"
	"log/slog"

	"github.com/eleven-am/voice-companion/internal/shared"
)

type PermissionState string

const (
	PermissionUnknown PermissionState = "unknown"
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
	PermissionPrompt  PermissionState = "prompt"
)

// CaptureStream is a live microphone handle owned by whoever opened it.
type CaptureStream interface {
	Close() error
}

// CaptureHost abstracts the host's permission and capture system. The
// host is the source of truth for permission state; the gate only caches
// its answers.
type CaptureHost interface {
	OpenCapture(ctx context.Context) (CaptureStream, error)
	QueryPermission(ctx context.Context) (PermissionState, error)
}

// Gate bridges to host-level microphone permission and capture. It never
// retains a stream between calls: ownership of a live capture belongs to
// the active session for that session's duration.
type Gate struct {
	host CaptureHost
	log  *slog.Logger
}

func NewGate(host CaptureHost, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{
		host: host,
		log:  log.With("component", "micgate"),
	}
}

// RequestAccess probes microphone permission by opening a capture stream
// and releasing it immediately. It holds nothing open on return.
func (g *Gate) RequestAccess(ctx context.Context) error {
	stream, err := g.host.OpenCapture(ctx)
	if err != nil {
		state, qerr := g.host.QueryPermission(ctx)
		if qerr == nil && state == PermissionDenied {
			return shared.WrapError(shared.KindPermissionDenied, "microphone access refused", err)
		}
		return shared.WrapError(shared.KindDeviceError, "microphone capture failed", err)
	}

	if err := stream.Close(); err != nil {
		g.log.Warn("failed to release probe capture", "error", err)
	}
	return nil
}

// OpenCapture hands a live stream to the caller, which owns it until Close.
func (g *Gate) OpenCapture(ctx context.Context) (CaptureStream, error) {
	stream, err := g.host.OpenCapture(ctx)
	if err != nil {
		return nil, shared.WrapError(shared.KindDeviceError, "microphone capture failed", err)
	}
	return stream, nil
}

// RefreshPermissionState re-queries the host. Best-effort: a host that
// cannot report yields Unknown, never an error.
func (g *Gate) RefreshPermissionState(ctx context.Context) PermissionState {
	state, err := g.host.QueryPermission(ctx)
	if err != nil {
		g.log.Debug("permission query failed", "error", err)
		return PermissionUnknown
	}
	return state
}
