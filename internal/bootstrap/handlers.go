package bootstrap

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/eleven-am/voice-companion/internal/automute"
	"github.com/eleven-am/voice-companion/internal/backend"
	"github.com/eleven-am/voice-companion/internal/control"
	"github.com/eleven-am/voice-companion/internal/extractor"
	"github.com/eleven-am/voice-companion/internal/health"
	"github.com/eleven-am/voice-companion/internal/modrouter"
	"github.com/eleven-am/voice-companion/internal/notes"
	"github.com/eleven-am/voice-companion/internal/reconnect"
	"github.com/eleven-am/voice-companion/internal/session"
	"github.com/eleven-am/voice-companion/internal/settings"
	"github.com/eleven-am/voice-companion/internal/telemetry"
)

type ControlParams struct {
	fx.In

	Machine    *session.Machine
	Guard      *reconnect.Guard
	Poller     *telemetry.Poller
	AutoMute   *automute.Synchronizer
	Backend    *backend.Client
	Supervisor *extractor.Supervisor
	Settings   *settings.Store
	Notes      *notes.Store
	Recorder   *notes.Recorder
	Resolver   *modrouter.Resolver
	Logger     *slog.Logger
}

func ProvideControlHandler(p ControlParams) *control.Handler {
	return control.NewHandler(
		p.Machine,
		p.Guard,
		p.Poller,
		p.AutoMute,
		p.Backend,
		p.Supervisor,
		p.Settings,
		p.Notes,
		p.Recorder,
		p.Resolver,
		p.Logger,
	)
}

func RegisterRoutes(e *echo.Echo, handler *control.Handler) {
	handler.RegisterRoutes(e.Group("/v1"))
}

func ProvideHealthHandler(db *gorm.DB, redisClient *redis.Client, client *backend.Client, ext *extractor.HTTPExtractor) *health.Handler {
	return health.NewHandler(db, redisClient, client, ext, version)
}

func RegisterHealthRoutes(e *echo.Echo, handler *health.Handler) {
	handler.RegisterRoutes(e)
}

var HandlersModule = fx.Options(
	fx.Provide(ProvideControlHandler),
	fx.Provide(ProvideHealthHandler),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(RegisterHealthRoutes),
)
