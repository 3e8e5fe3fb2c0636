package middleware

import (
	"crypto/subtle"
	"log"
	"net/http"
	"strings"

	"aquora-hydration-api/pkg/apierror"
)

// DispatchAuth guards the reminder trigger endpoint with a shared secret.
// The Authorization bearer path is always honored; the X-Dispatch-Secret
// header only when allowHeader is set, which is off by default. An empty
// secret leaves the endpoint open (the caller is expected to have logged a
// loud warning at startup). Rejected calls perform no dispatch work.
func DispatchAuth(secret string, allowHeader bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				token := strings.TrimPrefix(auth, "Bearer ")
				if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}

			if allowHeader {
				header := r.Header.Get("X-Dispatch-Secret")
				if header != "" && subtle.ConstantTimeCompare([]byte(header), []byte(secret)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}

			log.Printf("[DispatchAuth] Rejected trigger call from %s", r.RemoteAddr)
			writeError(w, apierror.Unauthorized("Invalid dispatch secret"))
		})
	}
}
