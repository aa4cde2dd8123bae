package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jonwraymond/agriops/health"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.instrument)
	r.Use(s.recoverer)
	r.Use(cors.Handler(s.corsOptions()))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, detailBody{Detail: "Not Found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, detailBody{Detail: "Method Not Allowed"})
	})

	both(r, http.MethodPost, "/soil-analysis/", s.handleSoil)
	both(r, http.MethodPost, "/disease-analysis/", s.handleDisease)
	both(r, http.MethodPost, "/chat", s.handleChat)
	both(r, http.MethodGet, "/weather/", s.handleWeather)
	both(r, http.MethodGet, "/admin/clear-cache", s.handleClearCache)

	both(r, http.MethodGet, "/health", health.StatusHandler(Version))
	r.Get("/health/details", health.DetailedHandler(s.health, Version))
	r.Get("/healthz", health.LivenessHandler())
	r.Get("/readyz", health.ReadinessHandler(s.health))
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

// both registers path with and without its trailing slash.
func both(r chi.Router, method, path string, h http.HandlerFunc) {
	trimmed := strings.TrimSuffix(path, "/")
	r.MethodFunc(method, trimmed, h)
	r.MethodFunc(method, trimmed+"/", h)
}

// corsOptions allows any origin outside production. Production allows only
// the configured origins.
func (s *Server) corsOptions() cors.Options {
	origins := []string{"*"}
	if s.production {
		origins = s.cfg.CORSOrigins
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}
