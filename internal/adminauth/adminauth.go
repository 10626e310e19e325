// Package adminauth guards the admin HTTP surface (/healthz, /metrics, and
// the time-lock cancel endpoint) with a bearer token checked against a
// bcrypt hash, the way a password would be checked -- the token itself is
// never persisted in recoverable form.
package adminauth

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// TokenChecker verifies bearer tokens presented to the admin mux against a
// single configured bcrypt hash. A zero-value TokenChecker (empty hash)
// accepts every request, matching the teacher's posture of auth being
// optional when unconfigured.
type TokenChecker struct {
	hash []byte
}

// NewTokenChecker builds a checker from a bcrypt hash produced by HashToken.
func NewTokenChecker(bcryptHash string) *TokenChecker {
	if bcryptHash == "" {
		return &TokenChecker{}
	}
	return &TokenChecker{hash: []byte(bcryptHash)}
}

// HashToken bcrypt-hashes token for storage in configuration.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Allow reports whether token matches the configured hash. Always true when
// no hash is configured.
func (c *TokenChecker) Allow(token string) bool {
	if len(c.hash) == 0 {
		return true
	}
	return bcrypt.CompareHashAndPassword(c.hash, []byte(token)) == nil
}

// Middleware rejects requests lacking a valid "Bearer <token>" Authorization
// header with 401, when a hash is configured.
func (c *TokenChecker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(c.hash) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || !c.Allow(token) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="goldengate-admin"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
