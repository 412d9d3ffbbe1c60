// Package control is the local HTTP surface the companion UI talks to.
// It exposes the session machine, telemetry, settings, and the page
// analysis flow under /v1.
package control

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/eleven-am/voice-companion/internal/backend"
	"github.com/eleven-am/voice-companion/internal/dto"
	"github.com/eleven-am/voice-companion/internal/extractor"
	"github.com/eleven-am/voice-companion/internal/modrouter"
	"github.com/eleven-am/voice-companion/internal/notes"
	"github.com/eleven-am/voice-companion/internal/session"
	"github.com/eleven-am/voice-companion/internal/settings"
	"github.com/eleven-am/voice-companion/internal/shared"
	"github.com/eleven-am/voice-companion/internal/telemetry"
)

const (
	maxAnalyzeChars  = 30_000
	truncationMarker = "\n\n[TRUNCATED]"
	utteranceBudget  = 8 * time.Second
)

type SessionController interface {
	Start(ctx context.Context, agentID string) error
	Stop()
	SendUtterance(text string) error
	SendContext(text string) error
	SetVolume(v float64)
	SetMicMuted(muted bool)
	Snapshot() session.Snapshot
}

type ConnectGuard interface {
	EnsureConnectedThenAct(ctx context.Context, agentID string, timeout time.Duration, action func() error) error
}

type TelemetryReader interface {
	Snapshot() telemetry.Snapshot
}

type AutoMuter interface {
	Enabled() bool
	SetEnabled(enabled bool)
}

type Analyzer interface {
	AnalyzePage(ctx context.Context, req backend.AnalyzePageRequest) (*backend.PageAnalysis, error)
	AnalyzeURL(ctx context.Context, req backend.AnalyzeURLRequest) (*backend.PageAnalysis, error)
}

type PageSource interface {
	ExtractPage(ctx context.Context) (extractor.Page, error)
}

// TurnRecorder follows the page currently under study so session turns
// land in the right notes record.
type TurnRecorder interface {
	SetActiveURL(url string)
}

type Handler struct {
	machine  SessionController
	guard    ConnectGuard
	poller   TelemetryReader
	autoMute AutoMuter
	analyzer Analyzer
	pages    PageSource
	settings *settings.Store
	notes    *notes.Store
	recorder TurnRecorder
	resolver *modrouter.Resolver
	logger   *slog.Logger
}

func NewHandler(
	machine SessionController,
	guard ConnectGuard,
	poller TelemetryReader,
	autoMute AutoMuter,
	analyzer Analyzer,
	pages PageSource,
	settingsStore *settings.Store,
	notesStore *notes.Store,
	recorder TurnRecorder,
	resolver *modrouter.Resolver,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		machine:  machine,
		guard:    guard,
		poller:   poller,
		autoMute: autoMute,
		analyzer: analyzer,
		pages:    pages,
		settings: settingsStore,
		notes:    notesStore,
		recorder: recorder,
		resolver: resolver,
		logger:   logger.With("component", "control"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/session/start", h.StartSession)
	g.POST("/session/stop", h.StopSession)
	g.POST("/session/utterance", h.SendUtterance)
	g.POST("/session/context", h.SendContext)
	g.PATCH("/session/volume", h.SetVolume)
	g.PATCH("/session/mic", h.SetMic)
	g.PATCH("/session/automute", h.SetAutoMute)
	g.GET("/session", h.GetSession)
	g.GET("/telemetry", h.GetTelemetry)
	g.GET("/settings", h.GetSettings)
	g.PUT("/settings", h.UpdateSettings)
	g.POST("/page/analyze", h.AnalyzePage)
	g.GET("/notes", h.GetNotes)
	g.GET("/audio/module", h.ResolveAudioModule)
	g.GET("/health", h.Health)
}

// sessionFailure maps orchestrator errors onto control-surface status
// codes via the shared taxonomy.
func sessionFailure(err error) *echo.HTTPError {
	kind := shared.KindOf(err)
	if kind == "" {
		return shared.InternalError("session_failed", err.Error())
	}
	return shared.NewAPIError(kind.String(), err.Error()).ToHTTP(shared.HTTPStatusFor(kind))
}

func (h *Handler) StartSession(c echo.Context) error {
	var req dto.StartSessionRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}

	agentID := strings.TrimSpace(req.AgentID)
	if agentID == "" {
		loaded, err := h.settings.Load(c.Request().Context())
		if err != nil {
			h.logger.Error("failed to load settings", "error", err)
			return shared.InternalError("settings_failed", "failed to load settings")
		}
		agentID = loaded.AgentID
	}

	if err := h.machine.Start(c.Request().Context(), agentID); err != nil {
		return sessionFailure(err)
	}
	return c.JSON(http.StatusOK, h.sessionResponse())
}

func (h *Handler) StopSession(c echo.Context) error {
	h.machine.Stop()
	return c.JSON(http.StatusOK, h.sessionResponse())
}

func (h *Handler) SendUtterance(c echo.Context) error {
	var req dto.UtteranceRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return shared.BadRequest("missing_text", "utterance text is required")
	}

	loaded, err := h.settings.Load(c.Request().Context())
	if err != nil {
		h.logger.Error("failed to load settings", "error", err)
		return shared.InternalError("settings_failed", "failed to load settings")
	}

	err = h.guard.EnsureConnectedThenAct(c.Request().Context(), loaded.AgentID, utteranceBudget, func() error {
		return h.machine.SendUtterance(req.Text)
	})
	if err != nil {
		return sessionFailure(err)
	}
	return c.JSON(http.StatusOK, dto.AckResponse{OK: true})
}

func (h *Handler) SendContext(c echo.Context) error {
	var req dto.ContextUpdateRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return shared.BadRequest("missing_text", "context text is required")
	}
	if err := h.machine.SendContext(req.Text); err != nil {
		return sessionFailure(err)
	}
	return c.JSON(http.StatusOK, dto.AckResponse{OK: true})
}

func (h *Handler) SetVolume(c echo.Context) error {
	var req dto.VolumeRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	h.machine.SetVolume(req.Volume)
	return c.JSON(http.StatusOK, h.sessionResponse())
}

func (h *Handler) SetMic(c echo.Context) error {
	var req dto.MicRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	h.machine.SetMicMuted(req.Muted)
	return c.JSON(http.StatusOK, h.sessionResponse())
}

func (h *Handler) SetAutoMute(c echo.Context) error {
	var req dto.AutoMuteRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	h.autoMute.SetEnabled(req.Enabled)
	return c.JSON(http.StatusOK, h.sessionResponse())
}

func (h *Handler) GetSession(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sessionResponse())
}

func (h *Handler) GetTelemetry(c echo.Context) error {
	return c.JSON(http.StatusOK, h.poller.Snapshot())
}

func (h *Handler) GetSettings(c echo.Context) error {
	loaded, err := h.settings.Load(c.Request().Context())
	if err != nil {
		h.logger.Error("failed to load settings", "error", err)
		return shared.InternalError("settings_failed", "failed to load settings")
	}
	return c.JSON(http.StatusOK, settingsToResponse(loaded))
}

// UpdateSettings applies the provided fields on top of the stored
// settings. AgentID takes effect on the next session start, BackendURL
// on the next backend call; auto-mute and volume apply immediately.
func (h *Handler) UpdateSettings(c echo.Context) error {
	var req dto.UpdateSettingsRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}

	ctx := c.Request().Context()
	loaded, err := h.settings.Load(ctx)
	if err != nil {
		h.logger.Error("failed to load settings", "error", err)
		return shared.InternalError("settings_failed", "failed to load settings")
	}

	if req.AgentID != nil {
		loaded.AgentID = strings.TrimSpace(*req.AgentID)
	}
	if req.BackendURL != nil {
		loaded.BackendURL = strings.TrimSpace(*req.BackendURL)
	}
	if req.AutoMuteEnabled != nil {
		loaded.AutoMuteEnabled = *req.AutoMuteEnabled
		h.autoMute.SetEnabled(*req.AutoMuteEnabled)
	}
	if req.Volume != nil {
		loaded.Volume = shared.ClampVolume(*req.Volume)
		h.machine.SetVolume(loaded.Volume)
	}

	if err := h.settings.Save(ctx, loaded); err != nil {
		h.logger.Error("failed to save settings", "error", err)
		return shared.InternalError("settings_failed", "failed to save settings")
	}

	saved, err := h.settings.Load(ctx)
	if err != nil {
		return shared.InternalError("settings_failed", "failed to reload settings")
	}
	return c.JSON(http.StatusOK, settingsToResponse(saved))
}

// AnalyzePage runs the study flow: obtain page text, send it to the
// backend for analysis, and start a fresh notes record for the URL.
// With an explicit URL in the request the backend fetches the page
// itself; without one the local extractor supplies the current page.
func (h *Handler) AnalyzePage(c echo.Context) error {
	var req dto.AnalyzePageRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}

	ctx := c.Request().Context()
	loaded, err := h.settings.Load(ctx)
	if err != nil {
		h.logger.Error("failed to load settings", "error", err)
		return shared.InternalError("settings_failed", "failed to load settings")
	}

	var (
		analysis  *backend.PageAnalysis
		pageURL   string
		truncated bool
	)

	if url := strings.TrimSpace(req.URL); url != "" {
		pageURL = url
		analysis, err = h.analyzer.AnalyzeURL(ctx, backend.AnalyzeURLRequest{
			SessionID: loaded.SessionID,
			URL:       url,
		})
	} else {
		var page extractor.Page
		page, err = h.pages.ExtractPage(ctx)
		if err != nil {
			return sessionFailure(err)
		}
		pageURL = page.URL

		text := page.CleanedText
		text, truncated = truncate(text, maxAnalyzeChars)
		analysis, err = h.analyzer.AnalyzePage(ctx, backend.AnalyzePageRequest{
			SessionID:   loaded.SessionID,
			URL:         page.URL,
			CleanedText: text,
		})
	}
	if err != nil {
		return sessionFailure(err)
	}

	if _, err := h.notes.Reset(ctx, pageURL); err != nil {
		h.logger.Error("failed to reset notes", "error", err, "url", pageURL)
	} else if _, err := h.notes.SetSummary(ctx, pageURL, analysis.Summary); err != nil {
		h.logger.Error("failed to store summary", "error", err, "url", pageURL)
	}
	h.recorder.SetActiveURL(pageURL)

	return c.JSON(http.StatusOK, analysisToResponse(pageURL, analysis, truncated))
}

func (h *Handler) GetNotes(c echo.Context) error {
	url := strings.TrimSpace(c.QueryParam("url"))
	if url == "" {
		return shared.BadRequest("missing_url", "url query parameter is required")
	}

	rec, err := h.notes.Get(c.Request().Context(), url)
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NotFound("notes_not_found", "no notes for this url")
	}
	if err != nil {
		h.logger.Error("failed to load notes", "error", err, "url", url)
		return shared.InternalError("notes_failed", "failed to load notes")
	}
	return c.JSON(http.StatusOK, notesToResponse(rec))
}

// ResolveAudioModule answers the UI's module-loading question: which
// locator to actually fetch for an audio worklet.
func (h *Handler) ResolveAudioModule(c echo.Context) error {
	locator := c.QueryParam("locator")
	if locator == "" {
		return shared.BadRequest("missing_locator", "locator query parameter is required")
	}
	return c.JSON(http.StatusOK, dto.ModuleResolution{
		Requested: locator,
		Resolved:  h.resolver.Resolve(locator),
		Ephemeral: modrouter.IsEphemeral(locator),
	})
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.HealthResponse{OK: true})
}

func (h *Handler) sessionResponse() dto.SessionResponse {
	snap := h.machine.Snapshot()
	resp := dto.SessionResponse{
		SessionID: snap.SessionID,
		AgentID:   snap.AgentID,
		State:     snap.State.String(),
		Volume:    snap.Volume,
		MicMuted:  snap.MicMuted,
		AutoMute:  h.autoMute.Enabled(),
	}
	if snap.LastError != nil {
		resp.LastError = &dto.ErrorResponse{
			Kind:           snap.LastError.Kind.String(),
			Message:        snap.LastError.Message,
			OccurredDuring: snap.LastError.OccurredDuring,
		}
	}
	return resp
}

// truncate cuts text at maxChars bytes, stepping back to a rune
// boundary so the result stays valid UTF-8.
func truncate(text string, maxChars int) (string, bool) {
	if len(text) <= maxChars {
		return text, false
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + truncationMarker, true
}

func settingsToResponse(s settings.Settings) dto.SettingsResponse {
	return dto.SettingsResponse{
		SessionID:       s.SessionID,
		AgentID:         s.AgentID,
		BackendURL:      s.BackendURL,
		AutoMuteEnabled: s.AutoMuteEnabled,
		Volume:          s.Volume,
	}
}

func analysisToResponse(url string, a *backend.PageAnalysis, truncated bool) dto.AnalysisResponse {
	resp := dto.AnalysisResponse{
		URL:       url,
		Summary:   a.Summary,
		Topics:    a.Topics,
		Truncated: truncated,
	}
	if resp.Topics == nil {
		resp.Topics = []string{}
	}
	resp.Sections = make([]dto.SectionResponse, len(a.Sections))
	for i, s := range a.Sections {
		resp.Sections[i] = dto.SectionResponse{ID: s.ID, Title: s.Title, Summary: s.Summary}
	}
	return resp
}

func notesToResponse(rec *notes.Record) dto.NotesResponse {
	resp := dto.NotesResponse{
		URL:       rec.URL,
		Summary:   rec.Summary,
		Questions: rec.Questions,
		UpdatedAt: rec.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if resp.Questions == nil {
		resp.Questions = []string{}
	}
	resp.Turns = make([]dto.TurnResponse, len(rec.Turns))
	for i, t := range rec.Turns {
		resp.Turns[i] = dto.TurnResponse{Role: t.Role.String(), Text: t.Text}
	}
	resp.QA = make([]dto.QAResponse, len(rec.QA))
	for i, qa := range rec.QA {
		resp.QA[i] = dto.QAResponse{Question: qa.Question, Answer: qa.Answer}
	}
	resp.Quizzes = make([]dto.QuizResponse, len(rec.Quizzes))
	for i, q := range rec.Quizzes {
		resp.Quizzes[i] = dto.QuizResponse{
			Question:      q.Question,
			UserAnswer:    q.UserAnswer,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
		}
	}
	return resp
}
