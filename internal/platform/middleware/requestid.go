package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"registra/pkg/requestcontext"
)

const requestIDHeader = "X-Request-ID"

// RequestID attaches a correlation ID to every request, honoring an incoming
// X-Request-ID header so traces can span services.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the correlation ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
