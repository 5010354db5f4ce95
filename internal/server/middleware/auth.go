package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// wsPath is the WebSocket endpoint. Browsers cannot set headers on the
// upgrade request, so it may carry the key as ?api_key= instead.
const wsPath = "/ws"

// Auth rejects requests that do not present apiKey, either as a Bearer token
// or in X-API-Key. An empty apiKey disables the check, and paths listed in
// public are always let through.
func Auth(apiKey string, public ...string) func(http.Handler) http.Handler {
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}
	want := []byte(apiKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" || open[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			switch token := presentedKey(r); {
			case token == "":
				reject(w, http.StatusUnauthorized, "missing authentication token")
			case subtle.ConstantTimeCompare([]byte(token), want) != 1:
				reject(w, http.StatusUnauthorized, "invalid authentication token")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func presentedKey(r *http.Request) string {
	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	if r.URL.Path == wsPath {
		return r.URL.Query().Get("api_key")
	}
	return ""
}
