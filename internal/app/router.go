// Package app wires configuration, adapters, and usecases into the runnable
// server and worker processes.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpserver "github.com/praxos/assistant-core/internal/adapter/httpserver"
	"github.com/praxos/assistant-core/internal/adapter/observability"
	"github.com/praxos/assistant-core/internal/config"
)

// ParseOrigins splits a comma-separated origin list into a slice, trimming spaces.
// If the input is empty, returns ["*"].
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler with all middlewares and routes.
func BuildRouter(cfg config.Config, srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	// Chat rides the provider call, so the request deadline must sit above
	// the provider timeout and below the server write timeout.
	r.Use(httpserver.TimeoutMiddleware(cfg.LLMTimeout + 30*time.Second))
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	// Credentials on: the session cookie must survive cross-origin requests.
	// Browsers refuse wildcard origins in that mode, so production deploys
	// set CORS_ALLOW_ORIGINS explicitly.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Credential endpoints: unauthenticated, rate limited by IP.
	r.Group(func(ar chi.Router) {
		ar.Use(httprate.LimitByIP(cfg.RateLimitPerMin, 1*time.Minute))
		ar.Post("/auth/login", srv.LoginHandler())
		ar.Post("/auth/logout", srv.LogoutHandler())
		ar.Post("/auth/register", srv.RegisterHandler())
	})

	// User surface: everything behind token verification.
	r.Group(func(ur chi.Router) {
		ur.Use(srv.Auth.RequireUser)
		ur.With(httprate.LimitByIP(cfg.RateLimitPerMin, 1*time.Minute)).
			Post("/chat", srv.ChatHandler())
		ur.Post("/chat/{message_id}/bookmark", srv.BookmarkHandler())
		ur.Post("/chat/{message_id}/save_as_note", srv.SaveNoteHandler())
		ur.Post("/feedback", srv.FeedbackHandler())
		ur.Post("/project/{project_id}/generate_wiki", srv.GenerateWikiHandler())
		ur.Get("/project/{project_id}/bookmarks", srv.BookmarksHandler())
		ur.Get("/project/{project_id}/jobs", srv.ProjectJobsHandler())
		ur.Get("/jobs/{job_id}", srv.JobHandler())
	})

	// Operator surface.
	r.Group(func(or chi.Router) {
		or.Use(srv.Auth.AdminOnly)
		or.Get("/status/services", srv.ServicesStatusHandler())
		or.Post("/internal/retry/registrations", srv.RetryRegistrationsHandler())
	})

	// Health and metrics.
	r.Get("/healthz", srv.HealthzHandler())
	r.Get("/readyz", srv.ReadyzHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) { promhttp.Handler().ServeHTTP(w, r) })

	return httpserver.SecurityHeaders(r)
}
