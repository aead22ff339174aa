package middleware

import (
	"net/http"
	"strings"
)

// Vary returns middleware that lists Accept in the Vary header, since responses
// are negotiated between JSON and CBOR.
func Vary() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			AddVary(w.Header(), "Accept")
			next.ServeHTTP(w, r)
		})
	}
}

// AddVary appends values to the Vary header, skipping names already present
// in any existing Vary line (compared case-insensitively).
func AddVary(h http.Header, values ...string) {
	seen := make(map[string]struct{})
	for _, line := range h.Values("Vary") {
		for part := range strings.SplitSeq(line, ",") {
			if name := strings.TrimSpace(part); name != "" {
				seen[strings.ToLower(name)] = struct{}{}
			}
		}
	}
	for _, v := range values {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		h.Add("Vary", v)
	}
}
