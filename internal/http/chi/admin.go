package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// requireAdmin accepts only requests carrying "Authorization: Bearer <token>".
// With an empty token every request is rejected.
func requireAdmin(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			given, ok := strings.CutPrefix(header, bearerPrefix)
			if token == "" || !ok || subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="operator"`)
				writeError(w, http.StatusUnauthorized, "operator token required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
