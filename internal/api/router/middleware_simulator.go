package router

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const simulatorTokenHeader = "X-Simulator-Token"

// requireSimulatorToken guards the conversation simulation endpoints with a
// shared token. When expected is empty, the middleware is a no-op.
func requireSimulatorToken(expected string) func(http.Handler) http.Handler {
	expected = strings.TrimSpace(expected)
	return func(next http.Handler) http.Handler {
		if expected == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(simulatorTokenHeader))
			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
				http.Error(w, "invalid simulator token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
