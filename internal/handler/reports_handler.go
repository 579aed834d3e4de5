package handler

import (
	"net/http"
	"strings"

	"github.com/billminder/billminder-go/internal/domain"
	"github.com/billminder/billminder-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Reminders + reports
// ============================================================

func remindersHandler(svc *service.ReminderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/reminders")
		defer span.End()

		reminders, err := svc.Scan(ctx, chi.URLParam(r, "userId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if reminders == nil {
			reminders = []domain.Reminder{}
		}
		writeJSON(w, http.StatusOK, reminders)
	}
}

func reportHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/reports/{type}")
		defer span.End()

		reportType := domain.ReportType(strings.ToUpper(chi.URLParam(r, "type")))
		report, err := svc.Generate(ctx, chi.URLParam(r, "userId"), reportType)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
