package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// AuthCookie holds the session token issued at login.
const AuthCookie = "facewatch_session"

// SessionToken derives the cookie value for password. Changing the password invalidates
// every issued cookie.
func SessionToken(password string) string {
	sum := sha256.Sum256([]byte("facewatch-session:" + password))
	return hex.EncodeToString(sum[:])
}

// AuthMiddleware rejects requests without a valid session cookie. The login and logout
// endpoints stay reachable.
func AuthMiddleware(password string, next http.Handler) http.Handler {
	token := []byte(SessionToken(password))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/auth/") {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(AuthCookie)
		if err != nil || subtle.ConstantTimeCompare([]byte(cookie.Value), token) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
