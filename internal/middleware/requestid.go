// Package middleware provides HTTP middleware for Baton.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const headerRequestID = "X-Request-ID"

// Inbound IDs longer than this are replaced rather than trusted; they end up
// in every log line for the request.
const maxRequestIDLen = 64

type requestIDCtxKey struct{}

// RequestID tags every request with an ID for log correlation. A well-formed
// X-Request-ID supplied by the caller is kept so IDs survive proxy hops;
// otherwise a fresh UUID is issued. The ID is echoed on the response header
// and stored in the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDCtxKey{}, id)
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the ID stored by RequestID, or "" when the
// request did not pass through the middleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey{}).(string)
	return id
}
