package middleware

import (
	"crypto/subtle"
	"net/http"
)

// WebhookAuth authenticates gateway callbacks with a shared secret carried in
// the X-Webhook-Secret header. An empty configured secret disables the
// webhook surface entirely rather than leaving it open.
func WebhookAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				writeAuthError(w, http.StatusForbidden, "webhooks disabled", "webhooks_disabled")
				return
			}

			got := r.Header.Get("X-Webhook-Secret")
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				writeAuthError(w, http.StatusUnauthorized, "invalid webhook secret", "auth_invalid")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
