package main

import (
	"crypto/tls"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/username/dividendlog/backend/src/handlers"
	"github.com/username/dividendlog/backend/src/logger"
	"github.com/username/dividendlog/backend/src/security"
	"golang.org/x/time/rate"
)

type routerConfig struct {
	allowedOrigins []string
	csrfKey        []byte
	sessionMaxAge  int
	limiter        *rate.Limiter
}

func proxyHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Forwarded-Proto") == "https" {
			r.URL.Scheme = "https"
			r.TLS = &tls.ConnectionState{}
		}
		next.ServeHTTP(w, r)
	})
}

func newLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(100*time.Millisecond), 30)
}

func rateLimitMiddleware(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				logger.FromContext(r.Context()).Warn("Rate limit exceeded", "path", r.URL.Path)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func enableCORS(origins []string) func(http.Handler) http.Handler {
	allowedOrigins := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			allowedOrigins[o] = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowedOrigins[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, X-Requested-With, Cookie, If-None-Match")
				w.Header().Set("Access-Control-Expose-Headers", "X-CSRF-Token, ETag")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func newRouter(cfg routerConfig, sessions *security.SessionService, importHandler *handlers.DividendImportHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(proxyHeadersMiddleware)
	r.Use(enableCORS(cfg.allowedOrigins))
	r.Use(rateLimitMiddleware(cfg.limiter))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Dividend import backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/auth/csrf", handlers.GetCSRFToken(cfg.csrfKey))

		r.Route("/dividend-import", func(r chi.Router) {
			r.Use(handlers.CSRFMiddleware(cfg.csrfKey))
			r.Use(handlers.SessionMiddleware(sessions, cfg.sessionMaxAge))

			r.Get("/brokers", importHandler.HandleListBrokers)
			r.Post("/upload", importHandler.HandleUpload)
			r.Get("/preview", importHandler.HandlePreview)
			r.Post("/import", importHandler.HandleImport)
			r.Delete("/staged", importHandler.HandleDiscard)
			r.Get("/history", importHandler.HandleGetImportHistory)
		})
	})

	return r
}
