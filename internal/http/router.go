package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"alumni/internal/config"
	"alumni/internal/content"
	"alumni/internal/dashboard"
	"alumni/internal/events"
	"alumni/internal/guard"
	"alumni/internal/members"
	"alumni/internal/notify"
	"alumni/internal/platform/metrics"
	"alumni/internal/session"
)

// Services bundles what the router exposes. Google and Gatherer are optional.
type Services struct {
	Resolver   *session.Resolver
	Members    *members.Service
	Content    *content.Service
	Events     *events.Service
	Dashboard  *dashboard.Service
	EmailLogs  notify.LogRepository
	Dispatcher *notify.Dispatcher
	Confirmer  *notify.Confirmer
	Google     *OAuthHandler
	Limiter    *IPRateLimiter
	Gatherer   prometheus.Gatherer
}

// NewRouter wires application routes and middleware using chi.
func NewRouter(cfg config.Config, svc Services, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Return-To"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(newSecurityHeadersMiddleware(cfg.Environment))
	r.Use(newSlogMiddleware(logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"environment": cfg.Environment,
		})
	})
	if svc.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(svc.Gatherer))
	}

	authHandler := NewAuthHandler(svc.Resolver, cfg.Environment, logger)
	memberHandler := NewMemberHandler(svc.Members, svc.Resolver, logger)
	adminHandler := NewAdminHandler(svc.Members, svc.Resolver, svc.Dashboard, svc.EmailLogs, logger)
	contentHandler := NewContentHandler(svc.Content, logger)
	eventHandler := NewEventHandler(svc.Events, svc.Confirmer, logger)
	emailHandler := NewEmailHandler(svc.Dispatcher, logger)

	requireMember := newGuardMiddleware(guard.Member)
	requireAdmin := newGuardMiddleware(guard.Admin)

	r.Route("/api", func(r chi.Router) {
		r.Use(newSessionMiddleware(svc.Resolver, logger))

		r.Get("/guard", Guard)
		r.Post("/email/rsvp-confirmation", emailHandler.SendRSVPConfirmation)

		r.Route("/auth", func(r chi.Router) {
			if svc.Limiter != nil {
				r.Use(svc.Limiter.Middleware)
			}
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Get("/session", authHandler.Session)
			r.Get("/methods", authHandler.SignInMethods)
			r.Post("/password-reset", authHandler.RequestPasswordReset)
			r.Post("/password-reset/confirm", authHandler.ConfirmPasswordReset)
			r.With(requireSignedIn).Put("/password", authHandler.ChangePassword)

			if svc.Google != nil {
				r.Get("/google", svc.Google.InitiateGoogle)
				r.Get("/google/callback", svc.Google.CallbackGoogle)
			}
		})

		r.Group(func(r chi.Router) {
			r.Use(requireSignedIn)
			r.Get("/profile", memberHandler.Profile)
			r.Put("/profile", memberHandler.UpdateProfile)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireMember)

			r.Get("/members", memberHandler.Directory)
			r.Get("/members/{id}", memberHandler.Get)
			r.Post("/members/{id}/connection", memberHandler.Connect)
			r.Delete("/members/{id}/connection", memberHandler.Disconnect)

			r.Get("/content/{kind}", contentHandler.List)
			r.Get("/content/{kind}/{id}", contentHandler.Get)
			r.Post("/content/{kind}", contentHandler.Create)
			r.Put("/content/{kind}/{id}", contentHandler.Update)
			r.Delete("/content/{kind}/{id}", contentHandler.Delete)

			r.Get("/events", eventHandler.List)
			r.Get("/events/{id}", eventHandler.Get)
			r.Post("/events/{id}/rsvp", eventHandler.RSVP)
			r.Delete("/events/{id}/rsvp", eventHandler.Cancel)
			r.Post("/events/{id}/rsvp/resend", eventHandler.ResendConfirmation)
			r.Get("/rsvps", eventHandler.Bookings)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)

			r.Post("/events", eventHandler.Create)
			r.Put("/events/{id}", eventHandler.Update)
			r.Delete("/events/{id}", eventHandler.Delete)
			r.Get("/events/{id}/attendees", eventHandler.Attendees)

			r.Route("/admin", func(r chi.Router) {
				r.Get("/dashboard", adminHandler.Dashboard)
				r.Get("/members", adminHandler.List)
				r.Get("/members/export", adminHandler.Export)
				r.Put("/members/{id}/approval", adminHandler.SetApproval)
				r.Put("/members/{id}/role", adminHandler.SetRole)
				r.Delete("/members/{id}", adminHandler.Delete)
				r.Get("/audit", adminHandler.AuditLog)
				r.Get("/emails", adminHandler.EmailLogs)
			})
		})
	})

	return r
}
