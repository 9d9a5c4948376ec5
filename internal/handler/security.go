package handler

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
)

// AdminKeyHeader carries the shared admin secret.
const AdminKeyHeader = "X-Admin-Key"

// AdminAuth guards admin routes with the single shared secret. Keys are
// compared as HMAC-SHA256 digests under a per-process pepper, in constant
// time, so neither the length nor a prefix of the secret leaks through
// response timing.
type AdminAuth struct {
	pepper []byte
	digest []byte
}

// NewAdminAuth creates an AdminAuth accepting key.
func NewAdminAuth(key string) *AdminAuth {
	pepper := make([]byte, 32)
	if _, err := rand.Read(pepper); err != nil {
		panic(err)
	}
	a := &AdminAuth{pepper: pepper}
	a.digest = a.sum(key)
	return a
}

func (a *AdminAuth) sum(key string) []byte {
	mac := hmac.New(sha256.New, a.pepper)
	mac.Write([]byte(key))
	return mac.Sum(nil)
}

// Authorized reports whether r presents the admin key, either in
// X-Admin-Key or as a bearer token.
func (a *AdminAuth) Authorized(r *http.Request) bool {
	key := r.Header.Get(AdminKeyHeader)
	if key == "" {
		auth := r.Header.Get("Authorization")
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			key = strings.TrimSpace(token)
		}
	}
	if key == "" {
		return false
	}
	return subtle.ConstantTimeCompare(a.sum(key), a.digest) == 1
}

// Middleware rejects unauthorized requests with 401.
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Authorized(r) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
