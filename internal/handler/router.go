package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/billminder/billminder-go/internal/infra/observability"
	"github.com/billminder/billminder-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services bundles everything the router serves.
type Services struct {
	Bills     *service.BillService
	Profiles  *service.ProfileService
	Reminders *service.ReminderService
	Reports   *service.ReportService
	Admin     *service.AdminService
	AdminAuth *service.AdminAuthService
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svcs Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			next.ServeHTTP(ww, req)
			metrics.IncrRequest(strconv.Itoa(ww.Status()))
		})
	})
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler(svcs.Bills, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Bills
		r.Route("/users/{userId}/bills", func(r chi.Router) {
			r.Get("/", listBillsHandler(svcs.Bills, logger))
			r.Post("/", createBillHandler(svcs.Bills, logger))
			r.Get("/{billId}", getBillHandler(svcs.Bills, logger))
			r.Patch("/{billId}", updateBillHandler(svcs.Bills, logger))
			r.Delete("/{billId}", deleteBillHandler(svcs.Bills, logger))
			r.Post("/{billId}/pay", payBillHandler(svcs.Bills, logger))
		})

		// Reminders + reports
		r.Get("/users/{userId}/reminders", remindersHandler(svcs.Reminders, logger))
		r.Get("/users/{userId}/reports/{type}", reportHandler(svcs.Reports, logger))

		// Profiles
		r.Get("/users/{userId}/profile", getProfileHandler(svcs.Profiles, logger))
		r.Put("/users/{userId}/profile", updateProfileHandler(svcs.Profiles, logger))
		r.Post("/users/{userId}/upgrade", upgradeHandler(svcs.Profiles, logger))
		r.Post("/users/{userId}/sync", syncHandler(svcs.Profiles, logger))
		r.Post("/users/attach", attachAccountHandler(svcs.Profiles, logger))

		// Security config
		r.Get("/security-config", getSecurityConfigHandler(svcs.Profiles, logger))
		r.Put("/security-config", putSecurityConfigHandler(svcs.Profiles, logger))

		// Admin overlay
		r.Route("/admin", func(r chi.Router) {
			if svcs.Admin == nil || svcs.AdminAuth == nil {
				r.Handle("/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					writeError(w, http.StatusServiceUnavailable, "admin overlay unavailable: Supabase not configured")
				}))
				return
			}

			r.Post("/login", adminLoginHandler(svcs.AdminAuth, logger))

			r.Group(func(r chi.Router) {
				r.Use(AdminAuthMiddleware(svcs.AdminAuth, logger))
				r.Get("/stats", adminStatsHandler(svcs.Admin, logger))
				r.Get("/users", adminListUsersHandler(svcs.Admin, logger))
				r.Get("/bills", adminListBillsHandler(svcs.Admin, logger))
				r.Put("/users/{userId}/tier", adminTierHandler(svcs.Admin, logger))
				r.Put("/users/{userId}/restriction", adminRestrictionHandler(svcs.Admin, logger))
				r.Patch("/bills/{billId}", adminPatchBillHandler(svcs.Admin, logger))
				r.Get("/config/{key}", adminGetConfigHandler(svcs.Admin, logger))
				r.Put("/config/{key}", adminPutConfigHandler(svcs.Admin, logger))
				r.Get("/audit-logs", adminAuditListHandler(svcs.Admin, logger))
				r.Delete("/audit-logs", adminAuditPurgeHandler(svcs.Admin, logger))
			})
		})
	})

	return r
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	}
}

// readyzHandler verifies the local store answers before reporting
// ready.
func readyzHandler(bills *service.BillService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := bills.List(r.Context(), "readiness-probe"); err != nil {
			logger.Error("readiness probe failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "local store unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
