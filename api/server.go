/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RequestLog: Structured request logging (zap)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/employees/*      Employees, balances, requests of one employee
  /api/requests/*       Decisions on requests
  /api/regions/*        Regions, holidays, concurrency and overload
  /api/team/*           Manager views
  /api/scenarios/*      Demo scenarios
  /api/absence-types    Display metadata
  /api/policy           Active policy

SECURITY NOTE:
  No authentication middleware. The acting user is named in the request
  (actor_id) and checked against roles by the engine.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// DefaultCORSOrigins are used when the handler has none configured.
var DefaultCORSOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	origins := h.CORSOrigins
	if len(origins) == 0 {
		origins = DefaultCORSOrigins
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/absence-types", h.ListAbsenceTypes)
		r.Get("/policy", h.GetPolicy)

		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Put("/{id}", h.UpdateEmployee)
			r.Delete("/{id}", h.DeactivateEmployee)
			r.Get("/{id}/balance", h.GetBalance)
			r.Put("/{id}/quota", h.SetQuota)
			r.Get("/{id}/requests", h.ListEmployeeRequests)
			r.Post("/{id}/requests", h.SubmitRequest)
			r.Get("/{id}/overlaps", h.FindOverlaps)
			r.Get("/{id}/workdays", h.QuoteWorkdays)
		})

		r.Route("/requests", func(r chi.Router) {
			r.Get("/pending", h.ListPendingRequests)
			r.Get("/{id}", h.GetRequest)
			r.Post("/{id}/approve", h.ApproveRequest)
			r.Post("/{id}/reject", h.RejectRequest)
			r.Post("/{id}/cancel", h.CancelRequest)
		})

		r.Route("/regions", func(r chi.Router) {
			r.Get("/", h.ListRegions)
			r.Post("/", h.CreateRegion)
			r.Get("/{id}", h.GetRegion)
			r.Put("/{id}", h.UpdateRegion)
			r.Get("/{id}/holidays", h.ListHolidays)
			r.Post("/{id}/holidays", h.CreateHoliday)
			r.Post("/{id}/holidays/import", h.ImportHolidays)
			r.Delete("/{id}/holidays/{holidayID}", h.DeleteHoliday)
			r.Get("/{id}/concurrency", h.GetConcurrency)
			r.Get("/{id}/overload", h.GetOverload)
			r.Get("/{id}/overload/latest", h.GetLatestOverload)
		})

		r.Route("/team", func(r chi.Router) {
			r.Get("/statistics", h.TeamStatistics)
			r.Get("/calendar", h.TeamCalendar)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// RequestLogger logs one line per request. 5xx responses are logged at
// error level, 4xx at warn, everything else at info.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.Int("status", status),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.String("ip", r.RemoteAddr),
				zap.Duration("latency", time.Since(start)),
				zap.Int("bytes", ww.BytesWritten()),
			}
			if reqID := middleware.GetReqID(r.Context()); reqID != "" {
				fields = append(fields, zap.String("request_id", reqID))
			}

			switch {
			case status >= 500:
				logger.Error("request failed", fields...)
			case status >= 400:
				logger.Warn("client error", fields...)
			default:
				logger.Info("request completed", fields...)
			}
		})
	}
}
