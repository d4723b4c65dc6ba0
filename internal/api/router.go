package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/openshorts/openshorts/internal/api/middleware"
	"github.com/openshorts/openshorts/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	RateLimit *mw.RateLimit

	HealthHandler         http.HandlerFunc
	SubmitHandler         http.HandlerFunc
	StatusHandler         http.HandlerFunc
	ResultHandler         http.HandlerFunc
	SocialPostHandler     http.HandlerFunc
	SocialProfilesHandler http.HandlerFunc

	// VideoDir is served read-only under /videos/ so produced clips can
	// be fetched directly. Empty disables the route.
	VideoDir string
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Rate limited API
	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Post("/api/v1/jobs", orNotImplemented(deps.SubmitHandler))
		r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.StatusHandler))
		r.Get("/api/v1/jobs/{jobID}/result", orNotImplemented(deps.ResultHandler))

		r.Post("/api/v1/social/posts", orNotImplemented(deps.SocialPostHandler))
		r.Get("/api/v1/social/profiles", orNotImplemented(deps.SocialProfilesHandler))
	})

	// Produced clips
	if deps.VideoDir != "" {
		fs := http.StripPrefix("/videos/", http.FileServer(http.Dir(deps.VideoDir)))
		r.Get("/videos/*", fs.ServeHTTP)
	}

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
