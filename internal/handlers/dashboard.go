package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"trafficnotes/internal/auth"
	"trafficnotes/internal/logger"
	"trafficnotes/internal/middleware"
	"trafficnotes/internal/models"
	"trafficnotes/internal/services"
)

const (
	dashboardListLimit = 100
	xlsxContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type DashboardHandler struct {
	pages
	violations *services.ViolationService
	reports    *services.ReportService
	audit      *services.AuditService
}

func NewDashboardHandler(templates TemplateExecutor, sessions *auth.SessionManager, violations *services.ViolationService, reports *services.ReportService, audit *services.AuditService) *DashboardHandler {
	return &DashboardHandler{
		pages:      pages{templates: templates, sessions: sessions},
		violations: violations,
		reports:    reports,
		audit:      audit,
	}
}

// Dashboard shows the statistics and the matching violations for the
// date_from, date_to and car_id query filters.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	filter := dashboardFilter(r)

	h.audit.LogAdminAccess(r.Context(), user.ID, "dashboard", filterDetails(filter))

	data := h.data(r, "Dashboard", "dashboard")
	data["Filter"] = filter

	stats, err := h.violations.Statistics(r.Context(), filter.DateFrom, filter.DateTo)
	if err != nil {
		messages, status := errorMessages(r, err)
		data["Errors"] = messages
		h.render(w, status, "dashboard.html", data)
		return
	}
	records, err := h.violations.List(r.Context(), filter, dashboardListLimit, 0)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	data["Stats"] = stats
	data["Violations"] = records
	h.render(w, http.StatusOK, "dashboard.html", data)
}

// Export downloads the current dashboard view as an XLSX workbook.
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	filter := dashboardFilter(r)

	var buf bytes.Buffer
	if err := h.reports.ExportXLSX(r.Context(), &buf, filter); err != nil {
		h.renderError(w, r, err)
		return
	}

	h.audit.Log(r.Context(), &user.ID, models.ActionReportExported, "report", nil, filterDetails(filter))

	filename := fmt.Sprintf("violations-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	if _, err := buf.WriteTo(w); err != nil {
		logger.Get().Warnw("failed to send report", "error", err)
	}
}

func dashboardFilter(r *http.Request) models.ViolationFilter {
	q := r.URL.Query()
	return models.ViolationFilter{
		DateFrom: strings.TrimSpace(q.Get("date_from")),
		DateTo:   strings.TrimSpace(q.Get("date_to")),
		CarID:    strings.TrimSpace(q.Get("car_id")),
	}
}

func filterDetails(f models.ViolationFilter) map[string]any {
	details := map[string]any{}
	if f.DateFrom != "" {
		details["date_from"] = f.DateFrom
	}
	if f.DateTo != "" {
		details["date_to"] = f.DateTo
	}
	if f.CarID != "" {
		details["car_id"] = f.CarID
	}
	return details
}
