package api

import (
	"crypto/subtle"
	"net/http"
	"net/http/httputil"
	"strings"

	log "github.com/sirupsen/logrus"
)

func LoggingMiddleware(prefix string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Tracef("[%s] %s %s", prefix, r.Method, r.URL.Path)
		log.Tracef("[%s]\n%s", prefix, dump(r))
		next.ServeHTTP(w, r)
	}
}

// BearerAuthMiddleware guards a route with a static bearer secret, the way
// provider webhook subscriptions are authenticated here.
func BearerAuthMiddleware(secret string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			w.WriteHeader(401)
			log.Warn("[api] no auth")
			return
		}
		token, ok := parseBearerAuth(auth)
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			w.WriteHeader(401)
			log.Warn("[api] invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	}
}

func parseBearerAuth(auth string) (token string, ok bool) {
	const prefix = "Bearer "
	// Case insensitive prefix match. See Issue 22736.
	if len(auth) < len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return
	}
	return auth[len(prefix):], true
}

func dump(r *http.Request) string {
	x, err := httputil.DumpRequest(r, true)
	if err != nil {
		return ""
	}
	return string(x)
}
