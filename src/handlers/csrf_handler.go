package handlers

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/username/dividendlog/backend/src/logger"
)

const (
	csrfCookieName = "_dividendlog_csrf"
	csrfHeaderName = "X-CSRF-Token"
)

// GetCSRFToken issues a token signed with csrfKey, both as a cookie and in the
// response. Mutating requests must echo it back in the X-CSRF-Token header.
func GetCSRFToken(csrfKey []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())
		token, err := generateCSRFToken(csrfKey)
		if err != nil {
			log.Error("Error generating random bytes for CSRF token", "error", err)
			http.Error(w, "could not generate CSRF token", http.StatusInternalServerError)
			return
		}
		log.Debug("Generated CSRF token", "remoteAddr", r.RemoteAddr)

		http.SetCookie(w, &http.Cookie{
			Name:     csrfCookieName,
			Value:    token,
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
			HttpOnly: true,
			Secure:   r.TLS != nil,
			MaxAge:   3600,
		})

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set(csrfHeaderName, token)

		json.NewEncoder(w).Encode(map[string]string{
			"csrfToken": token,
		})
	}
}

func generateCSRFToken(csrfKey []byte) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	nonce := base64.RawURLEncoding.EncodeToString(b)
	return nonce + "." + signCSRFNonce(csrfKey, nonce), nil
}

func signCSRFNonce(csrfKey []byte, nonce string) string {
	mac := hmac.New(sha256.New, csrfKey)
	mac.Write([]byte(nonce))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func validCSRFToken(csrfKey []byte, token string) bool {
	nonce, sig, ok := strings.Cut(token, ".")
	if !ok || nonce == "" {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(signCSRFNonce(csrfKey, nonce)))
}

func CSRFMiddleware(csrfKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logger.FromContext(r.Context())

			// Safe methods never change state.
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			headerToken := r.Header.Get(csrfHeaderName)
			cookie, errCookie := r.Cookie(csrfCookieName)

			if headerToken != "" && errCookie == nil &&
				subtle.ConstantTimeCompare([]byte(headerToken), []byte(cookie.Value)) == 1 &&
				validCSRFToken(csrfKey, headerToken) {
				next.ServeHTTP(w, r)
				return
			}

			var cookieErrorForLog interface{}
			if errCookie != nil {
				cookieErrorForLog = errCookie.Error()
			}

			log.Warn("CSRF Validation Failed",
				slog.String("method", r.Method),
				slog.String("url", r.URL.String()),
				slog.Bool("headerTokenPresent", headerToken != ""),
				slog.Any("cookieError", cookieErrorForLog),
				slog.String("origin", r.Header.Get("Origin")),
				slog.String("referer", r.Header.Get("Referer")),
			)

			http.Error(w, "CSRF token validation failed", http.StatusForbidden)
		})
	}
}
