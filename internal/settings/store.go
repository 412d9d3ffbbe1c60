// Package settings persists the small user-facing configuration the
// companion exposes over the control surface.
package settings

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eleven-am/voice-companion/internal/shared"
)

const (
	settingsKey        = "companion:settings"
	defaultBackendBase = "http://localhost:8000"
)

// Settings is everything the UI can change. SessionID identifies this
// installation to the backend and survives restarts.
type Settings struct {
	SessionID       string  `json:"sessionId"`
	AgentID         string  `json:"agentId"`
	BackendURL      string  `json:"backendUrl"`
	AutoMuteEnabled bool    `json:"autoMuteEnabled"`
	Volume          float64 `json:"volume"`
	UpdatedAt       time.Time
}

// Defaults returns a fresh installation's settings with a newly minted
// session id.
func Defaults() Settings {
	return Settings{
		SessionID:       shared.NewID("inst_"),
		AgentID:         "",
		BackendURL:      defaultBackendBase,
		AutoMuteEnabled: true,
		Volume:          1.0,
	}
}

type Store struct {
	redis *redis.Client
}

func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient}
}

// Load returns the stored settings, falling back to Defaults when
// nothing has been saved yet. The generated defaults are persisted so
// the session id stays stable from then on.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	data, err := s.redis.Get(ctx, settingsKey).Bytes()
	if err == redis.Nil {
		defaults := Defaults()
		if err := s.Save(ctx, defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}
	if err != nil {
		return Settings{}, err
	}

	var loaded Settings
	if err := json.Unmarshal(data, &loaded); err != nil {
		return Settings{}, err
	}
	return normalize(loaded), nil
}

// Save persists the settings. Empty or out-of-range fields are filled
// from defaults before writing so a partial PUT cannot wedge the store.
func (s *Store) Save(ctx context.Context, in Settings) error {
	out := normalize(in)
	out.UpdatedAt = time.Now()

	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, settingsKey, data, 0).Err()
}

func normalize(in Settings) Settings {
	if in.SessionID == "" {
		in.SessionID = shared.NewID("inst_")
	}
	if in.BackendURL == "" {
		in.BackendURL = defaultBackendBase
	}
	in.Volume = shared.ClampVolume(in.Volume)
	return in
}
