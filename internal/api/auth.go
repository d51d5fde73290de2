package api

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	SessionCookieName  = "ambient_control"
	SessionDuration    = 24 * time.Hour
	ControlTokenHeader = "X-Control-Token"
)

var errBadCookie = errors.New("invalid session cookie")

// ControlAuth guards control routes with a shared token. Clients send the
// token as a bearer token or X-Control-Token header, or trade it for a
// signed session cookie. A nil *ControlAuth allows everything.
type ControlAuth struct {
	token     []byte
	secretKey []byte
	now       func() time.Time
}

// NewControlAuth returns nil when token is empty.
func NewControlAuth(token string) *ControlAuth {
	if token == "" {
		return nil
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		log.Printf("⚠️ Failed to generate cookie secret, deriving from token")
		sum := sha256.Sum256([]byte("ambient-control:" + token))
		secret = sum[:]
	}
	return &ControlAuth{
		token:     []byte(token),
		secretKey: secret,
		now:       time.Now,
	}
}

// Enabled reports whether a token is required.
func (a *ControlAuth) Enabled() bool {
	return a != nil
}

func (a *ControlAuth) checkToken(token string) bool {
	return token != "" && hmac.Equal([]byte(token), a.token)
}

// Authorized reports whether r carries the token or a valid session.
func (a *ControlAuth) Authorized(r *http.Request) bool {
	if a == nil {
		return true
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		if a.checkToken(strings.TrimPrefix(auth, "Bearer ")) {
			return true
		}
	}
	if a.checkToken(r.Header.Get(ControlTokenHeader)) {
		return true
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		if _, err := a.decodeCookie(c.Value); err == nil {
			return true
		}
	}
	return false
}

// Middleware rejects unauthorized requests with 401.
func (a *ControlAuth) Middleware(next http.Handler) http.Handler {
	if a == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Authorized(r) {
			RecordConnectionRejected("unauthorized")
			writeError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// encodeCookie signs the session expiry.
func (a *ControlAuth) encodeCookie(expires time.Time) string {
	payload := strconv.FormatInt(expires.Unix(), 10)
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(payload))
	sig := hex.EncodeToString(mac.Sum(nil))
	return base64.URLEncoding.EncodeToString([]byte(payload + "." + sig))
}

// decodeCookie verifies the signature and expiry.
func (a *ControlAuth) decodeCookie(value string) (time.Time, error) {
	decoded, err := base64.URLEncoding.DecodeString(value)
	if err != nil {
		return time.Time{}, errBadCookie
	}
	payload, sig, ok := strings.Cut(string(decoded), ".")
	if !ok {
		return time.Time{}, errBadCookie
	}

	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(payload))
	if !hmac.Equal([]byte(sig), []byte(hex.EncodeToString(mac.Sum(nil)))) {
		return time.Time{}, errBadCookie
	}

	unix, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return time.Time{}, errBadCookie
	}
	expires := time.Unix(unix, 0)
	if a.now().After(expires) {
		return time.Time{}, errBadCookie
	}
	return expires, nil
}

func (h *routerHandlers) handleAuthSession(w http.ResponseWriter, r *http.Request) {
	if !h.auth.Enabled() {
		writeJSON(w, map[string]bool{"authenticated": true})
		return
	}
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if !h.auth.checkToken(req.Token) {
		RecordConnectionRejected("unauthorized")
		writeError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	expires := h.auth.now().Add(SessionDuration)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    h.auth.encodeCookie(expires),
		Path:     "/",
		MaxAge:   int(SessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	log.Printf("🔐 Control session created for %s", GetClientIP(r))
	writeJSON(w, map[string]interface{}{
		"authenticated": true,
		"expiresAt":     expires.Unix(),
	})
}

func (h *routerHandlers) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]bool{
		"required":      h.auth.Enabled(),
		"authenticated": h.auth.Authorized(r),
	})
}

func (h *routerHandlers) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, map[string]bool{"authenticated": false})
}
