package checks

import (
	"strings"

	"github.com/bissquit/status-garden/internal/domain"
)

// DebouncedPassing reports whether a check should be considered passing
// given its most recent results (newest first) and its debounce factor.
// The window covers the debounce+1 newest results: a single success
// anywhere inside it keeps the check passing, so a check only flips to
// failing after debounce+1 consecutive failures. Empty history passes.
func DebouncedPassing(results []domain.CheckResult, debounce int) bool {
	if len(results) == 0 {
		return true
	}
	if debounce < 0 {
		debounce = 0
	}
	window := results
	if len(window) > debounce+1 {
		window = window[:debounce+1]
	}
	for _, r := range window {
		if r.Succeeded {
			return true
		}
	}
	return false
}

// SerializeResults renders recent results (newest first) as a compact
// oldest-first summary like "1,1,-1" for the cached health field.
func SerializeResults(results []domain.CheckResult) string {
	if len(results) == 0 {
		return ""
	}
	vals := make([]string, len(results))
	for i, r := range results {
		v := "-1"
		if r.Succeeded {
			v = "1"
		}
		vals[len(results)-1-i] = v
	}
	return strings.Join(vals, ",")
}
