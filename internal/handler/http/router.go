package http

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

// RouterOptions carries the deployment settings the router needs.
type RouterOptions struct {
	Env                string
	Version            string
	CORSAllowedOrigins []string
	LogLevel           slog.Level
	Metrics            http.Handler
}

func NewRouter(
	opts RouterOptions,
	JWTService jwt.Service,
	punchHandler PunchHandler,
	recordHandler RecordHandler,
	catalogHandler CatalogHandler,
	tokenHandler TokenHandler,
) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(opts.Env != "production")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "attendance-engine"),
		slog.String("version", opts.Version),
		slog.String("env", opts.Env),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSAllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  opts.LogLevel,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Stream auth is a query token, EventSource can't set headers
		r.Get("/punches/stream", punchHandler.Stream)

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired(JWTService))
			r.Use(chiMiddleware.AllowContentEncoding("application/json"))

			r.Route("/punches", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(jwt.RoleDevice))
					r.Post("/", punchHandler.Commit)
					r.Post("/preview", punchHandler.Preview)
				})

				r.With(middleware.AdminOnly).Post("/stream-token", punchHandler.GetStreamToken)
			})

			r.With(middleware.RequireRole(jwt.RoleSweeper)).
				Get("/persons/{personID}/records", recordHandler.HasRecord)

			// Admin only
			r.Group(func(r chi.Router) {
				r.Use(middleware.AdminOnly)
				r.Get("/records/{recordID}", recordHandler.Get)
				r.Get("/rules/conflicts", catalogHandler.Conflicts)
				r.Post("/catalog/invalidate", catalogHandler.Invalidate)
				r.Post("/tokens/revoke", tokenHandler.Revoke)
			})
		})
	})
	return r
}
