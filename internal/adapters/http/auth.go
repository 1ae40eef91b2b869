package httpadapter

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/error-review-admin/internal/core/domain"
	"github.com/kirillkom/error-review-admin/internal/core/ports"
	"github.com/kirillkom/error-review-admin/internal/core/usecase"
)

const sessionCookieName = "session"

type subjectContextKey struct{}

func subjectFromContext(ctx context.Context) string {
	subject, _ := ctx.Value(subjectContextKey{}).(string)
	return subject
}

type cookieOptions struct {
	ttl    time.Duration
	secure bool
}

func (rt *Router) sessionCookieOptions() cookieOptions {
	ttl := rt.cfg.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return cookieOptions{ttl: ttl, secure: rt.cfg.SessionCookieSecure}
}

func setSessionCookie(w http.ResponseWriter, sessionID string, opts cookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(opts.ttl.Seconds()),
		HttpOnly: true,
		Secure:   opts.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, opts cookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   opts.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Credentials are checked by the auth use case only.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (rt *Router) login(w http.ResponseWriter, r *http.Request) {
	if retryAfter, ok := rt.logins.allow(remoteHost(r)); !ok {
		rt.recordLogin("throttled")
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many login attempts"})
		return
	}

	req, err := parseJSON[loginRequest](r)
	if err != nil {
		rt.recordLogin("invalid")
		writeError(w, err)
		return
	}

	sessionID, err := rt.auth.Login(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, usecase.ErrAuthNotConfigured):
		rt.recordLogin("misconfigured")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server misconfiguration"})
		return
	case domain.IsKind(err, domain.ErrUnauthorized):
		rt.recordLogin("rejected")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	case err != nil:
		rt.recordLogin("error")
		writeError(w, err)
		return
	}

	rt.recordLogin("success")
	setSessionCookie(w, sessionID, rt.sessionCookieOptions())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if err := rt.auth.Logout(r.Context(), cookie.Value); err != nil {
			writeError(w, err)
			return
		}
	}
	clearSessionCookie(w, rt.sessionCookieOptions())
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) recordLogin(result string) {
	if rt.metrics != nil {
		rt.metrics.RecordLogin(result)
	}
}

func requiresSession(path string) bool {
	return strings.HasPrefix(path, "/v1/") && !strings.HasPrefix(path, "/v1/auth/")
}

// sessionMiddleware guards /v1 routes except auth and slides the session TTL.
func sessionMiddleware(next http.Handler, auth ports.Authenticator, opts cookieOptions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth == nil || !requiresSession(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || strings.TrimSpace(cookie.Value) == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}

		subject, err := auth.Authenticate(r.Context(), cookie.Value)
		if err != nil {
			if domain.IsKind(err, domain.ErrTemporary) {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}

		setSessionCookie(w, cookie.Value, opts)
		ctx := context.WithValue(r.Context(), subjectContextKey{}, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// hostLimiter throttles login attempts per remote host.
type hostLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	entries  map[string]*hostEntry
	idleTTL  time.Duration
	disabled bool
}

type hostEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newHostLimiter(perWindow int, window time.Duration) *hostLimiter {
	if perWindow <= 0 {
		return &hostLimiter{disabled: true}
	}
	return &hostLimiter{
		limit:   rate.Limit(float64(perWindow) / window.Seconds()),
		burst:   perWindow,
		entries: make(map[string]*hostEntry),
		idleTTL: 10 * window,
	}
}

// allow reports whether host may attempt a login now, and otherwise the
// number of seconds to wait.
func (l *hostLimiter) allow(host string) (int, bool) {
	if l == nil || l.disabled {
		return 0, true
	}
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.evictIdle(now)
	entry, ok := l.entries[host]
	if !ok {
		entry = &hostEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[host] = entry
	}
	entry.lastSeen = now

	reservation := entry.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return 60, false
	}
	delay := reservation.DelayFrom(now)
	if delay == 0 {
		return 0, true
	}
	reservation.CancelAt(now)
	return retryAfterSeconds(delay), false
}

func (l *hostLimiter) evictIdle(now time.Time) {
	for host, entry := range l.entries {
		if now.Sub(entry.lastSeen) > l.idleTTL {
			delete(l.entries, host)
		}
	}
}

func remoteHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
