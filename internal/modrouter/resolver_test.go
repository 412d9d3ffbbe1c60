package modrouter

import (
	"io"
	"log/slog"
	"strings"
	"testing"
)

func newTestResolver() *Resolver {
	rules := DefaultRules(
		"/assets/worklet-processor.js",
		"https://cdn.example.com/libsamplerate.js",
		"/assets/resample-shim.js",
	)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewResolver(rules, log)
}

func TestResolver_InlineLocatorRedirects(t *testing.T) {
	r := newTestResolver()

	inline := []string{
		"data:application/javascript;base64,Zm9vKCk=",
		"blob:https://host.example/8c7a1f",
	}
	for _, loc := range inline {
		if got := r.Resolve(loc); got != "/assets/worklet-processor.js" {
			t.Errorf("Resolve(%q): expected bundled worklet, got %q", loc, got)
		}
	}
}

func TestResolver_ResamplerRedirectsToShim(t *testing.T) {
	r := newTestResolver()

	if got := r.Resolve("https://cdn.example.com/libsamplerate.js"); got != "/assets/resample-shim.js" {
		t.Errorf("expected shim locator, got %q", got)
	}
	if got := r.Resolve("https://unpkg.com/@audio/libsamplerate-wasm/dist/worklet.js"); got != "/assets/resample-shim.js" {
		t.Errorf("expected shim locator for any libsamplerate reference, got %q", got)
	}
}

func TestResolver_PassthroughOnNoMatch(t *testing.T) {
	r := newTestResolver()

	unmatched := []string{
		"/assets/some-other-module.js",
		"https://host.example/processor.js",
		"",
	}
	for _, loc := range unmatched {
		if got := r.Resolve(loc); got != loc {
			t.Errorf("Resolve(%q): expected passthrough, got %q", loc, got)
		}
	}
}

func TestResolver_PassthroughIsIdempotent(t *testing.T) {
	r := newTestResolver()

	loc := "https://host.example/unrelated.js"
	once := r.Resolve(loc)
	twice := r.Resolve(once)
	if once != loc || twice != loc {
		t.Errorf("repeated resolution changed an unmatched locator: %q -> %q -> %q", loc, once, twice)
	}
}

func TestResolver_FirstMatchWins(t *testing.T) {
	rules := []RedirectRule{
		{Name: "first", Matcher: func(l string) bool { return strings.HasPrefix(l, "x:") }, Replacement: "/a.js"},
		{Name: "second", Matcher: func(l string) bool { return strings.HasPrefix(l, "x:") }, Replacement: "/b.js"},
	}
	r := NewResolver(rules, nil)

	if got := r.Resolve("x:anything"); got != "/a.js" {
		t.Errorf("expected first registered rule to win, got %q", got)
	}
}

func TestResolver_NilMatcherSkipped(t *testing.T) {
	rules := []RedirectRule{
		{Name: "broken", Matcher: nil, Replacement: "/never.js"},
		{Name: "ok", Matcher: func(l string) bool { return l == "hit" }, Replacement: "/ok.js"},
	}
	r := NewResolver(rules, nil)

	if got := r.Resolve("hit"); got != "/ok.js" {
		t.Errorf("expected rule after nil matcher to apply, got %q", got)
	}
	if got := r.Resolve("miss"); got != "miss" {
		t.Errorf("expected passthrough, got %q", got)
	}
}

func TestIsEphemeral(t *testing.T) {
	if !IsEphemeral("data:text/javascript,void 0") {
		t.Error("data: locator should be ephemeral")
	}
	if !IsEphemeral("blob:null/7d4f") {
		t.Error("blob: locator should be ephemeral")
	}
	if IsEphemeral("https://host.example/mod.js") {
		t.Error("https locator should not be ephemeral")
	}
}
