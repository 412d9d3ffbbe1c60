package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"time"
)

const defaultHelperTimeout = 10 * time.Second

// HTTPExtractor talks to the local extraction helper over its loopback
// HTTP endpoint.
type HTTPExtractor struct {
	baseURL string
	http    *http.Client
}

func NewHTTPExtractor(baseURL string, timeout time.Duration) *HTTPExtractor {
	if timeout <= 0 {
		timeout = defaultHelperTimeout
	}
	return &HTTPExtractor{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (e *HTTPExtractor) ExtractPage(ctx context.Context) (Page, error) {
	body, err := json.Marshal(map[string]string{"type": "EXTRACT_PAGE"})
	if err != nil {
		return Page{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/extract", bytes.NewReader(body))
	if err != nil {
		return Page{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("extractor returned %d", resp.StatusCode)
	}

	var out struct {
		CleanedText string `json:"cleanedText"`
		URL         string `json:"url"`
		Error       string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Page{}, err
	}
	if out.Error != "" {
		return Page{}, fmt.Errorf("extractor: %s", out.Error)
	}
	return Page{URL: out.URL, CleanedText: out.CleanedText}, nil
}

func (e *HTTPExtractor) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/ping", nil)
	if err != nil {
		return err
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("extractor ping returned %d", resp.StatusCode)
	}
	return nil
}

// CommandInstaller (re-)installs the extraction helper by running a
// configured command, typically the helper's own restart script.
type CommandInstaller struct {
	command string
	args    []string
}

func NewCommandInstaller(command string, args ...string) *CommandInstaller {
	return &CommandInstaller{command: command, args: args}
}

func (i *CommandInstaller) Install(ctx context.Context) error {
	if i.command == "" {
		return fmt.Errorf("no installer command configured")
	}
	cmd := exec.CommandContext(ctx, i.command, i.args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("installer %q failed: %w: %s", i.command, err, bytes.TrimSpace(out))
	}
	return nil
}
