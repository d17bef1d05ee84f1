// backend/src/handlers/middleware.go
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/username/dividendlog/backend/src/logger"
	"github.com/username/dividendlog/backend/src/security"
	"github.com/username/dividendlog/backend/src/utils"
)

type contextKey string

const (
	requestIDContextKey contextKey = "requestID"
	sessionIDContextKey contextKey = "sessionID"
)

// SessionCookieName carries the signed operator session token.
const SessionCookieName = "dividend_import_session"

// ContextualLoggerMiddleware cria um logger com um requestID para cada requisição.
func ContextualLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()

		ctxLogger := logger.L.With(slog.String("requestID", requestID))

		ctx := logger.ToContext(r.Context(), ctxLogger)
		ctx = context.WithValue(ctx, requestIDContextKey, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionMiddleware resolves the operator session from its cookie, starting a
// new session when the cookie is missing or no longer valid. The session id is
// what scopes a staged import batch.
func SessionMiddleware(sessions *security.SessionService, expirySeconds int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctxLogger := logger.FromContext(r.Context())

			var sessionID string
			if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
				id, err := sessions.ValidateSessionToken(cookie.Value)
				if err != nil {
					ctxLogger.Debug("SessionMiddleware: session cookie rejected, starting a new session", "path", r.URL.Path, "error", err)
				}
				sessionID = id
			}

			if sessionID == "" {
				token, id, err := sessions.NewSessionToken()
				if err != nil {
					ctxLogger.Error("SessionMiddleware: failed to issue session token", "error", err)
					utils.SendJSONError(w, "Could not start session", http.StatusInternalServerError)
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    token,
					Path:     "/",
					SameSite: http.SameSiteLaxMode,
					HttpOnly: true,
					Secure:   r.TLS != nil,
					MaxAge:   expirySeconds,
				})
				sessionID = id
				ctxLogger.Info("SessionMiddleware: new session started", "sessionID", sessionID)
			}

			enrichedLogger := ctxLogger.With(slog.String("sessionID", sessionID))
			ctx := logger.ToContext(r.Context(), enrichedLogger)
			ctx = context.WithValue(ctx, sessionIDContextKey, sessionID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSessionIDFromContext returns the session id set by SessionMiddleware.
func GetSessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDContextKey).(string)
	return id, ok && id != ""
}
