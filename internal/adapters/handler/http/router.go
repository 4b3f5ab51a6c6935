package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vncsmyrnk/fintrack/internal/adapters/ratelimit"
	"github.com/vncsmyrnk/fintrack/internal/core/ports"
	"github.com/vncsmyrnk/fintrack/internal/logging"
)

type RouterConfig struct {
	Session        SessionCookie
	CSRFCookieName string
	AllowedOrigins []string

	// TrustProxyHeaders rewrites RemoteAddr from proxy headers. Rate limits
	// key on RemoteAddr, so leave it off unless a proxy sets those headers.
	TrustProxyHeaders bool
}

type Services struct {
	Auth       ports.AuthService
	Users      ports.UserService
	Workspaces ports.WorkspaceService
	Items      ports.ItemService
}

func NewHandler(cfg RouterConfig, services Services, limiter ratelimit.Limiter, log logging.Logger) http.Handler {
	authHandler := NewAuthHandler(services.Auth, cfg.Session, log)
	userHandler := NewUserHandler(services.Users, services.Auth, log)
	workspaceHandler := NewWorkspaceHandler(services.Workspaces, services.Items, log)
	csrf := NewCSRF(cfg.CSRFCookieName, cfg.Session.Secure)

	requireAuth := RequireAuth(services.Auth, cfg.Session.Name, log)
	limit := func(rule ratelimit.Rule, message string) func(http.Handler) http.Handler {
		return RateLimit(limiter, rule, message, log)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", csrfHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(csrf.SetCookie)
	r.Use(csrf.Protect)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeOK(w)
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Get("/csrf", csrf.Token)
			r.Get("/session", authHandler.Session)
			r.With(limit(ratelimit.RegisterRule, "Too many registration attempts, please try again later")).
				Post("/register", authHandler.Register)
			r.With(limit(ratelimit.LoginRule, "Too many login attempts, please try again later")).
				Post("/login", authHandler.Login)
			r.With(limit(ratelimit.ForgotPasswordRule, "Too many password reset requests, please try again later")).
				Post("/forgot-password", authHandler.ForgotPassword)
			r.With(limit(ratelimit.ResetPasswordRule, "Too many password reset attempts, please try again later")).
				Post("/reset-password", authHandler.ResetPassword)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/logout", authHandler.Logout)
				r.Get("/me", userHandler.GetMe)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me/email", userHandler.GetEmail)
			r.Put("/me/email", userHandler.ChangeEmail)
			r.With(limit(ratelimit.UserSearchRule, "Too many search requests, please try again later")).
				Get("/search", userHandler.Search)
		})

		r.Route("/workspaces", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", workspaceHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", workspaceHandler.Summary)
				r.Put("/balance", workspaceHandler.SetBalance)
				r.Get("/cycles", workspaceHandler.ListCycles)
				r.Post("/members", workspaceHandler.Share)
				r.Post("/items", workspaceHandler.CreateItem)
				r.Patch("/items/{itemID}", workspaceHandler.UpdateItem)
				r.Delete("/items/{itemID}", workspaceHandler.DeleteItem)
			})
		})
	})

	return r
}
