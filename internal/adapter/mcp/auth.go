package mcp

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// AuthMiddleware guards the MCP endpoint with a static bearer token.
// The Authorization header may carry "Bearer <key>" or the bare key.
// An empty apiKey disables the check and passes all requests through.
func AuthMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		switch {
		case auth == "":
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
		case !tokenMatches(auth, apiKey):
			slog.Debug("mcp auth rejected", "remote", r.RemoteAddr)
			http.Error(w, "invalid credentials", http.StatusForbidden)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// tokenMatches compares the presented credential against the key in
// constant time.
func tokenMatches(auth, apiKey string) bool {
	token, found := strings.CutPrefix(auth, "Bearer ")
	if !found {
		token = auth
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) == 1
}
