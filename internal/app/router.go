package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sangbadpatra/sangbadpatra/internal/auth"
	"github.com/sangbadpatra/sangbadpatra/internal/gate"
	"github.com/sangbadpatra/sangbadpatra/internal/news"
	"github.com/sangbadpatra/sangbadpatra/internal/observability"
	"github.com/sangbadpatra/sangbadpatra/internal/session"
	"github.com/sangbadpatra/sangbadpatra/internal/shared"
	"github.com/sangbadpatra/sangbadpatra/internal/users"
	"github.com/sangbadpatra/sangbadpatra/jobs"
	"github.com/sangbadpatra/sangbadpatra/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger       *slog.Logger
	Config       *Config
	Gate         *gate.Gate
	CSRFManager  *shared.CSRFManager
	AuthHandler  *auth.Handler
	NewsHandler  *news.Handler
	UsersHandler *users.Handler
	JobHandler   *jobs.Handler
	Metrics      *observability.Metrics
}

// NewRouter constructs the chi.Router for the portal.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:      params.Logger,
		Config:      params.Config,
		Gate:        params.Gate,
		CSRFManager: params.CSRFManager,
		Metrics:     params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/news", params.NewsHandler.MountPublic)

	r.Route("/api", func(r chi.Router) {
		params.NewsHandler.MountAPI(r, params.Gate)
		r.Route("/users", func(r chi.Router) {
			params.UsersHandler.MountRoutes(r, params.Gate)
		})
		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(params.Gate.RequireRole(session.RoleAdmin, session.RoleSuperAdmin))
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	// Every remaining path is a page route. The gate middleware has
	// already redirected anyone who does not belong here; what is left
	// gets the client shell.
	shell := shellHandler(params.Logger)
	r.Get("/", shell)
	r.Get("/*", shell)

	return r
}

func shellHandler(logger *slog.Logger) http.HandlerFunc {
	page, err := web.Static.ReadFile("static/index.html")
	if err != nil {
		logger.Error("load client shell", slog.Any("error", err))
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if page == nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(page)
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers so
// browsers keep assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
