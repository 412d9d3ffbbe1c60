// Package extractor is the boundary to the page-content extraction
// collaborator. The companion does not scrape pages itself; it asks an
// external extractor process for cleaned text and supervises its
// liveness.
package extractor

import (
	"context"
	"log/slog"

	"github.com/eleven-am/voice-companion/internal/shared"
)

// Page is the extractor's answer for the current page.
type Page struct {
	URL         string `json:"url"`
	CleanedText string `json:"cleanedText"`
}

// Extractor hands back cleaned page text. Ping answers whether the
// extractor is alive and able to serve ExtractPage.
type Extractor interface {
	ExtractPage(ctx context.Context) (Page, error)
	Ping(ctx context.Context) error
}

// Installer (re-)installs the extractor when it stops answering pings.
type Installer interface {
	Install(ctx context.Context) error
}

// Supervisor wraps an Extractor with the liveness protocol: a failed
// ping triggers one reinstall before the extraction is attempted, and a
// still-dead extractor surfaces as a device error.
type Supervisor struct {
	ext       Extractor
	installer Installer
	log       *slog.Logger
}

func NewSupervisor(ext Extractor, installer Installer, log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{
		ext:       ext,
		installer: installer,
		log:       log.With("component", "extractor"),
	}
}

// ExtractPage checks liveness, reinstalling at most once, then asks for
// the page text.
func (s *Supervisor) ExtractPage(ctx context.Context) (Page, error) {
	if err := s.ensureAlive(ctx); err != nil {
		return Page{}, err
	}

	page, err := s.ext.ExtractPage(ctx)
	if err != nil {
		return Page{}, shared.WrapError(shared.KindDeviceError, "page extraction failed", err)
	}
	if page.CleanedText == "" {
		return Page{}, shared.NewError(shared.KindDeviceError, "extractor returned no text")
	}
	return page, nil
}

func (s *Supervisor) ensureAlive(ctx context.Context) error {
	err := s.ext.Ping(ctx)
	if err == nil {
		return nil
	}

	s.log.Info("extractor not responding, reinstalling", "error", err)
	if err := s.installer.Install(ctx); err != nil {
		return shared.WrapError(shared.KindDeviceError, "extractor reinstall failed", err)
	}
	if err := s.ext.Ping(ctx); err != nil {
		return shared.WrapError(shared.KindDeviceError, "extractor unresponsive after reinstall", err)
	}
	return nil
}
