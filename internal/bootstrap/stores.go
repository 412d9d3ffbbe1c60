package bootstrap

import (
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/eleven-am/voice-companion/internal/notes"
	"github.com/eleven-am/voice-companion/internal/settings"
)

func ProvideSettingsStore(redisClient *redis.Client) *settings.Store {
	return settings.NewStore(redisClient)
}

func ProvideNotesStore(db *gorm.DB) *notes.Store {
	return notes.NewStore(db)
}

func ProvideNotesRecorder(store *notes.Store, logger *slog.Logger) *notes.Recorder {
	return notes.NewRecorder(store, logger)
}

func RunMigrations(notesStore *notes.Store) error {
	return notesStore.Migrate()
}

var StoresModule = fx.Options(
	fx.Provide(
		ProvideSettingsStore,
		ProvideNotesStore,
		ProvideNotesRecorder,
	),
	fx.Invoke(RunMigrations),
)
