package signal

import (
	"net/http"
	"strings"
)

// originChecker allows any origin when allowed is empty, and requests
// without an Origin header (non-browser clients) in every case.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = normalizeOrigin(o)
		if o == "" {
			continue
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		if len(set) == 0 {
			return true
		}
		if _, wildcard := set["*"]; wildcard {
			return true
		}
		origin := normalizeOrigin(r.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func normalizeOrigin(o string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")
}
