package gateway

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"github.com/flemzord/presenced/internal/security"
)

// authMiddleware checks Bearer or Basic credentials in constant time.
// limiter counts failures per client address and refuses an address that
// exhausted it. Every decision is recorded on audit. Both may be nil. With no credentials
// configured every request passes.
func authMiddleware(cfg AuthConfig, audit *security.AuditLogger, limiter *security.RateLimiter, counters *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.IsConfigured() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := clientAddr(r)
			if limiter.Exceeded(addr) {
				counters.RecordRateLimited()
				emitAuthEvent(audit, security.EventRateLimit, r, "too many failed attempts")
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}

			method, ok := checkCredentials(cfg, r)
			if ok {
				emitAuthEvent(audit, security.EventAuthSuccess, r, method)
				next.ServeHTTP(w, r)
				return
			}

			counters.RecordAuthFailure()
			_ = limiter.Allow(addr)
			emitAuthEvent(audit, security.EventAuthFailure, r, method)
			w.Header().Set("WWW-Authenticate", `Bearer realm="presenced"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}

// checkCredentials returns the auth method that matched, or a failure
// reason when none did.
func checkCredentials(cfg AuthConfig, r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "missing authorization header", false
	}
	if cfg.BearerToken != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok && constantTimeEqual(token, cfg.BearerToken) {
			return "bearer", true
		}
	}
	if cfg.BasicUser != "" && cfg.BasicPass != "" {
		user, pass, ok := r.BasicAuth()
		if ok && constantTimeEqual(user, cfg.BasicUser) && constantTimeEqual(pass, cfg.BasicPass) {
			return "basic", true
		}
	}
	return "invalid credentials", false
}

func emitAuthEvent(audit *security.AuditLogger, eventType security.EventType, r *http.Request, detail string) {
	if audit == nil {
		return
	}
	audit.Log(security.AuditEvent{
		Type:     eventType,
		Remote:   clientAddr(r),
		Path:     r.URL.Path,
		Detail:   detail,
		Metadata: map[string]string{"method": r.Method},
	})
}

// clientAddr is the host part of the request's remote address.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
