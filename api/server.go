/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, the middleware stack and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:      Unique ID per request, echoed in logs
  2. RealIP:         Client IP from X-Forwarded-For / X-Real-IP
  3. RequestLogger:  logrus request line
  4. Recoverer:      Panic recovery (500 instead of crash)
  5. CORS:           Cross-origin requests for the HR frontend
  6. RateLimit:      Per-IP token bucket
  7. RequireSession: X-User-ID / X-Role (everything under /api)

ROUTE GROUPS:
  /api/calendars/*    Named holiday calendars and working-day counts
  /api/holidays/*     Persisted (admin-managed) holidays
  /api/leave-types/*  Leave type reference data
  /api/users/*        Users, and leave balances and attendance of one user
  /health             Liveness (no session)

SEE ALSO:
  - handlers.go: Handler implementations
  - session.go:  Session headers and role checks
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions carries the HTTP-level settings from config.
type RouterOptions struct {
	AllowedOrigins  []string
	RateLimitPerMin int
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", headerUserID, headerRole},
		AllowCredentials: true,
	}))
	r.Use(RateLimit(opts.RateLimitPerMin))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireSession)

		// Calendar routes
		r.Route("/calendars", func(r chi.Router) {
			r.Get("/", h.ListCalendars)
			r.Get("/{name}/holidays", h.GetCalendarHolidays)
			r.Get("/{name}/working-days", h.GetWorkingDays)
		})

		// Persisted holiday routes
		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.With(RequireAdmin).Post("/", h.CreateHoliday)
			r.With(RequireAdmin).Delete("/{id}", h.DeleteHoliday)
		})

		// Leave type routes
		r.Route("/leave-types", func(r chi.Router) {
			r.Get("/", h.ListLeaveTypes)
			r.With(RequireAdmin).Post("/", h.CreateLeaveType)
		})

		// User routes
		r.With(RequireAdmin).Get("/users", h.ListUsers)

		// Per-user routes
		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/", h.GetUser)
			r.With(RequireAdmin).Put("/", h.SaveUser)
			r.Get("/leave-balances", h.GetLeaveBalances)
			r.With(RequireAdmin).Put("/leave-balances/{typeID}", h.SetLeaveBalance)
			r.Post("/attendance", h.MarkAttendance)
			r.Get("/attendance", h.ListAttendance)
			r.Get("/attendance/working-days", h.GetAttendanceWorkingDays)
		})
	})

	return r
}

// Health reports liveness and database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
