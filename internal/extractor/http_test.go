package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPExtractorExtractPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/extract" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"cleanedText":"article body","url":"https://example.com/a"}`))
	}))
	defer srv.Close()

	ext := NewHTTPExtractor(srv.URL, time.Second)
	page, err := ext.ExtractPage(context.Background())
	if err != nil {
		t.Fatalf("ExtractPage: %v", err)
	}
	if page.URL != "https://example.com/a" || page.CleanedText != "article body" {
		t.Fatalf("page = %+v", page)
	}
}

func TestHTTPExtractorSurfacesHelperError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"no active page"}`))
	}))
	defer srv.Close()

	ext := NewHTTPExtractor(srv.URL, time.Second)
	_, err := ext.ExtractPage(context.Background())
	if err == nil || err.Error() != "extractor: no active page" {
		t.Fatalf("err = %v", err)
	}
}

func TestHTTPExtractorPing(t *testing.T) {
	alive := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ping" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if !alive {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	ext := NewHTTPExtractor(srv.URL, time.Second)
	if err := ext.Ping(context.Background()); err == nil {
		t.Fatal("expected ping failure")
	}
	alive = true
	if err := ext.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestHTTPExtractorPingConnectionFailure(t *testing.T) {
	ext := NewHTTPExtractor("http://127.0.0.1:1", 200*time.Millisecond)
	if err := ext.Ping(context.Background()); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestCommandInstallerRequiresCommand(t *testing.T) {
	inst := NewCommandInstaller("")
	if err := inst.Install(context.Background()); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestCommandInstallerRunsCommand(t *testing.T) {
	inst := NewCommandInstaller("true")
	if err := inst.Install(context.Background()); err != nil {
		t.Fatalf("Install: %v", err)
	}

	failing := NewCommandInstaller("false")
	if err := failing.Install(context.Background()); err == nil {
		t.Fatal("expected failing command to error")
	}
}
