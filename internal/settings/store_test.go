package settings

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { redisClient.Close() })

	return NewStore(redisClient)
}

func TestLoadEmptyStoreReturnsDefaults(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.BackendURL != defaultBackendBase {
		t.Errorf("backend url = %q, want %q", got.BackendURL, defaultBackendBase)
	}
	if !strings.HasPrefix(got.SessionID, "inst_") {
		t.Errorf("session id %q not generated", got.SessionID)
	}
	if got.AgentID != "" {
		t.Errorf("agent id = %q, want empty", got.AgentID)
	}
	if !got.AutoMuteEnabled {
		t.Error("auto mute should default to enabled")
	}
	if got.Volume != 1.0 {
		t.Errorf("volume = %v, want 1.0", got.Volume)
	}
}

func TestLoadKeepsGeneratedSessionID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("first Load: %v", err)
	}
	second, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if first.SessionID != second.SessionID {
		t.Fatalf("session id changed between loads: %q vs %q", first.SessionID, second.SessionID)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in := Settings{
		SessionID:       "inst_fixed",
		AgentID:         "agent-42",
		BackendURL:      "https://api.example.com",
		AutoMuteEnabled: false,
		Volume:          0.5,
	}
	if err := store.Save(ctx, in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.SessionID != "inst_fixed" || got.AgentID != "agent-42" {
		t.Fatalf("identity fields lost: %+v", got)
	}
	if got.BackendURL != "https://api.example.com" {
		t.Errorf("backend url = %q", got.BackendURL)
	}
	if got.AutoMuteEnabled {
		t.Error("auto mute should stay disabled")
	}
	if got.Volume != 0.5 {
		t.Errorf("volume = %v, want 0.5", got.Volume)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not stamped")
	}
}

func TestSaveFillsMissingFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, Settings{AgentID: "agent-1", Volume: 3.0}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.BackendURL != defaultBackendBase {
		t.Errorf("backend url = %q, want default", got.BackendURL)
	}
	if got.SessionID == "" {
		t.Error("session id not generated on save")
	}
	if got.Volume != 1.0 {
		t.Errorf("volume = %v, want clamped to 1.0", got.Volume)
	}
}
