package modrouter

import (
	"log/slog"
	"strings"
)

// RedirectRule pairs a locator predicate with the bundled replacement to
// load instead. Rules are data: adding one never touches dispatch code.
type RedirectRule struct {
	Name        string
	Matcher     func(locator string) bool
	Replacement string
}

// Resolver decides, per audio-processing module load, whether to honor
// the requested locator or substitute a sandbox-safe bundled one. The
// rule set is fixed at construction and consulted in registration order;
// first match wins and anything unmatched passes through verbatim.
type Resolver struct {
	rules []RedirectRule
	log   *slog.Logger
}

func NewResolver(rules []RedirectRule, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		rules: rules,
		log:   log.With("component", "modrouter"),
	}
}

// Resolve returns the effective locator for a requested module load.
// It never fails and never blocks; the caller performs the actual load
// with identical semantics either way.
func (r *Resolver) Resolve(requested string) string {
	for _, rule := range r.rules {
		if rule.Matcher != nil && rule.Matcher(requested) {
			r.log.Debug("module load redirected",
				"rule", rule.Name,
				"requested", requested,
				"effective", rule.Replacement)
			return rule.Replacement
		}
	}
	return requested
}

func (r *Resolver) RuleCount() int {
	return len(r.rules)
}

// IsEphemeral reports whether a locator references an inline module that
// cannot be fetched over the network (embedded as raw data).
func IsEphemeral(locator string) bool {
	return strings.HasPrefix(locator, "data:") || strings.HasPrefix(locator, "blob:")
}

// DefaultRules returns the shipped redirect table: inline/ephemeral
// worklet references go to the bundled processor, and the external
// resampler library goes to the packaged identity shim.
func DefaultRules(bundledWorklet, resamplerLocator, shimLocator string) []RedirectRule {
	return []RedirectRule{
		{
			Name:        "inline-worklet",
			Matcher:     IsEphemeral,
			Replacement: bundledWorklet,
		},
		{
			Name: "external-resampler",
			Matcher: func(locator string) bool {
				return locator == resamplerLocator ||
					strings.Contains(locator, "libsamplerate")
			},
			Replacement: shimLocator,
		},
	}
}
