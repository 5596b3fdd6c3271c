/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RequestLogger: One logrus line per request (logging.go)
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests for the frontend
  5. Auth:          Bearer token on everything under /api except health

ROUTE GROUPS:
  /api/health           Liveness and database ping
  /api/employees/*      Timeline, tasks, timesheets, remarks, leaves
  /api/timelines/*      Server-held windows
  /api/calendar/*       Company calendar
  /api/scenarios/*      Demo seed data (admin)

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token verification and role checks
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// RouterOptions configure the middleware around the handlers.
type RouterOptions struct {
	// Auth verifies bearer tokens. Nil disables authentication.
	Auth           *Authenticator
	AllowedOrigins []string
	Log            logrus.FieldLogger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	log := opts.Log
	if log == nil {
		log = h.log
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Group(func(r chi.Router) {
			r.Use(opts.Auth.Middleware)

			// Employee routes
			r.Route("/employees/{id}", func(r chi.Router) {
				r.Get("/timeline", h.GetTimeline)

				r.Post("/tasks", h.CreateTask)
				r.Put("/tasks/{taskID}", h.UpdateTask)
				r.Post("/tasks/{taskID}/complete", h.CompleteTask)
				r.Delete("/tasks/{taskID}", h.DeleteTask)
				r.Get("/tasks/{taskID}/reconciliation", h.GetTaskReconciliation)

				r.Post("/timesheets", h.CreateTimesheetDay)
				r.Post("/timesheets/{date}/submit", h.SubmitTimesheetDay)
				r.Post("/timesheets/{date}/entries", h.AddEntry)
				r.Put("/timesheets/{date}/entries/{entryID}", h.EditEntry)
				r.Delete("/timesheets/{date}/entries/{entryID}", h.DeleteEntry)

				r.Get("/remarks/{date}", h.GetRemark)
				r.With(RequireRole(RoleAdmin)).Put("/remarks/{date}", h.PutRemark)

				r.Post("/leaves", h.CreateLeave)
			})

			// Timeline session routes
			r.Route("/timelines", func(r chi.Router) {
				r.Post("/", h.OpenTimeline)
				r.Get("/{sid}", h.GetTimelineSession)
				r.Delete("/{sid}", h.CloseTimeline)
				r.Post("/{sid}/extend", h.ExtendTimeline)
				r.Post("/{sid}/jump", h.JumpTimeline)
				r.Post("/{sid}/refresh", h.RefreshTimeline)
				r.Post("/{sid}/select", h.SelectEmployee)
			})

			// Calendar routes
			r.Route("/calendar", func(r chi.Router) {
				r.Get("/events", h.ListCalendarEvents)
				r.With(RequireRole(RoleAdmin)).Post("/events", h.CreateCalendarEvent)
			})

			// Scenario routes
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.With(RequireRole(RoleAdmin)).Post("/load", h.LoadScenario)
				r.With(RequireRole(RoleAdmin)).Post("/reset", h.ResetDatabase)
			})
		})
	})

	return r
}
