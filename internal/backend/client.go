package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/eleven-am/voice-companion/internal/shared"
)

const maxErrorBody = 4 * 1024

// Client talks to the companion backend: signed realtime URLs and page
// analysis. Failures carry the response body text so operators see what
// the backend actually said.
type Client struct {
	httpClient *http.Client
	origin     OriginFunc
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	origin := cfg.Origin
	if origin == nil {
		base := cfg.BaseURL
		origin = func(context.Context) (string, error) { return base, nil }
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		origin:     origin,
	}
}

func (c *Client) baseURL(ctx context.Context) (string, error) {
	base, err := c.origin(ctx)
	if err != nil {
		return "", shared.WrapError(shared.KindConfigurationError, "resolve backend origin", err)
	}
	return strings.TrimRight(base, "/"), nil
}

// SignedURL exchanges an agent ID for a time-limited realtime endpoint.
func (c *Client) SignedURL(ctx context.Context, agentID string) (string, error) {
	var resp SignedURLResponse
	if err := c.post(ctx, "/elevenlabs/signed_url", SignedURLRequest{AgentID: agentID}, &resp); err != nil {
		return "", err
	}
	if resp.SignedURL == "" {
		return "", shared.NewError(shared.KindBackendUnavailable, "backend response missing signedUrl")
	}
	return resp.SignedURL, nil
}

func (c *Client) AnalyzePage(ctx context.Context, req AnalyzePageRequest) (*PageAnalysis, error) {
	var resp PageAnalysis
	if err := c.post(ctx, "/page/analyze", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) AnalyzeURL(ctx context.Context, req AnalyzeURLRequest) (*PageAnalysis, error) {
	var resp PageAnalysis
	if err := c.post(ctx, "/url/analyze", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Health(ctx context.Context) error {
	base, err := c.baseURL(ctx)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return shared.WrapError(shared.KindBackendUnavailable, "health check failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	base, err := c.baseURL(ctx)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return shared.WrapError(shared.KindBackendUnavailable, "backend request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return shared.WrapError(shared.KindBackendUnavailable, "decode backend response", err)
	}
	return nil
}

func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := fmt.Sprintf("backend returned %d", resp.StatusCode)
	if text := strings.TrimSpace(string(body)); text != "" {
		msg = fmt.Sprintf("%s: %s", msg, text)
	}
	return shared.NewError(shared.KindBackendUnavailable, msg)
}
