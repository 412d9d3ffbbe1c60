package bootstrap

import (
	"context"
	"log/slog"
	"strings"

	"go.uber.org/fx"

	"github.com/eleven-am/voice-companion/internal/automute"
	"github.com/eleven-am/voice-companion/internal/backend"
	"github.com/eleven-am/voice-companion/internal/capture"
	"github.com/eleven-am/voice-companion/internal/extractor"
	"github.com/eleven-am/voice-companion/internal/micgate"
	"github.com/eleven-am/voice-companion/internal/modrouter"
	"github.com/eleven-am/voice-companion/internal/notes"
	"github.com/eleven-am/voice-companion/internal/realtime"
	"github.com/eleven-am/voice-companion/internal/reconnect"
	"github.com/eleven-am/voice-companion/internal/session"
	"github.com/eleven-am/voice-companion/internal/settings"
	"github.com/eleven-am/voice-companion/internal/telemetry"
)

func ProvideResolver(cfg *Config, logger *slog.Logger) *modrouter.Resolver {
	rules := modrouter.DefaultRules(cfg.BundledWorkletPath, cfg.ResamplerLocator, cfg.ShimWorkletPath)
	return modrouter.NewResolver(rules, logger)
}

func ProvideCaptureHost(logger *slog.Logger) *capture.Host {
	return capture.NewHost(logger)
}

func ProvideGate(host *capture.Host, logger *slog.Logger) *micgate.Gate {
	return micgate.NewGate(host, logger)
}

// ProvideBackendClient resolves the backend origin per request from the
// environment override or the stored settings, so a saved backendUrl
// governs the next call rather than the next restart.
func ProvideBackendClient(cfg *Config, store *settings.Store) *backend.Client {
	origin := func(ctx context.Context) (string, error) {
		if cfg.BackendURL != "" {
			return cfg.BackendURL, nil
		}
		loaded, err := store.Load(ctx)
		if err != nil {
			return "", err
		}
		return loaded.BackendURL, nil
	}
	return backend.NewClient(backend.Config{
		Origin:  origin,
		Timeout: cfg.BackendTimeout,
	})
}

func ProvideRealtimeConfig(cfg *Config) realtime.Config {
	return realtime.Config{
		AgentSilence:     cfg.AgentSilence,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
}

func ProvideDialer(rtCfg realtime.Config, logger *slog.Logger) session.Dialer {
	return func(ctx context.Context, signedURL string, cb realtime.Callbacks) (session.Link, error) {
		return realtime.Dial(ctx, signedURL, rtCfg, cb, logger)
	}
}

func ProvideMachine(gate *micgate.Gate, client *backend.Client, dial session.Dialer, logger *slog.Logger) *session.Machine {
	return session.NewMachine(session.MachineConfig{
		Gate:    gate,
		Backend: client,
		Dial:    dial,
		Log:     logger,
	})
}

func ProvideAutoMute(machine *session.Machine, store *settings.Store, logger *slog.Logger) (*automute.Synchronizer, error) {
	loaded, err := store.Load(context.Background())
	if err != nil {
		return nil, err
	}
	return automute.New(machine, loaded.AutoMuteEnabled, logger), nil
}

func ProvideTelemetryPoller(machine *session.Machine, cfg *Config, logger *slog.Logger) *telemetry.Poller {
	return telemetry.New(machine, cfg.TelemetryInterval, logger)
}

func ProvideReconnectGuard(machine *session.Machine, cfg *Config, logger *slog.Logger) *reconnect.Guard {
	return reconnect.New(machine, cfg.ReconnectPoll, logger)
}

func ProvideHTTPExtractor(cfg *Config) *extractor.HTTPExtractor {
	return extractor.NewHTTPExtractor(cfg.ExtractorURL, 0)
}

func ProvideExtractorSupervisor(cfg *Config, helper *extractor.HTTPExtractor, logger *slog.Logger) *extractor.Supervisor {
	var installer extractor.Installer
	if fields := strings.Fields(cfg.ExtractorInstallCmd); len(fields) > 0 {
		installer = extractor.NewCommandInstaller(fields[0], fields[1:]...)
	} else {
		installer = extractor.NewCommandInstaller("")
	}
	return extractor.NewSupervisor(helper, installer, logger)
}

// StartOrchestrator binds the long-lived pieces to the fx lifecycle:
// observers attach before the server takes traffic and everything is
// torn down in reverse on shutdown.
func StartOrchestrator(
	lc fx.Lifecycle,
	machine *session.Machine,
	sync *automute.Synchronizer,
	recorder *notes.Recorder,
	poller *telemetry.Poller,
	host *capture.Host,
	store *settings.Store,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			loaded, err := store.Load(ctx)
			if err != nil {
				return err
			}
			machine.SetVolume(loaded.Volume)
			sync.Attach(machine)
			recorder.Attach(machine)
			poller.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			poller.Stop()
			machine.Stop()
			recorder.Detach()
			sync.Detach()
			host.Shutdown()
			return nil
		},
	})
}

var VoiceModule = fx.Options(
	fx.Provide(
		ProvideResolver,
		ProvideCaptureHost,
		ProvideGate,
		ProvideBackendClient,
		ProvideRealtimeConfig,
		ProvideDialer,
		ProvideMachine,
		ProvideAutoMute,
		ProvideTelemetryPoller,
		ProvideReconnectGuard,
		ProvideHTTPExtractor,
		ProvideExtractorSupervisor,
	),
	fx.Invoke(StartOrchestrator),
)
