package web

import (
	"net/http"

	"github.com/JonMunkholm/bulkbook/internal/booking"
	"github.com/JonMunkholm/bulkbook/internal/core"
)

// withRequestMetadata stores the client IP and User-Agent for submission
// history, and the organizer's Authorization header for the booking call.
func withRequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.WithClientInfo(r.Context(), r.RemoteAddr, r.UserAgent()) // RemoteAddr already resolved by TrustedRealIP
		if auth := r.Header.Get("Authorization"); auth != "" {
			ctx = booking.WithAuthorization(ctx, auth)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
