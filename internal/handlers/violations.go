package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"trafficnotes/internal/auth"
	"trafficnotes/internal/middleware"
	"trafficnotes/internal/services"
)

const violationsPerPage = 50

type ViolationsHandler struct {
	pages
	violations *services.ViolationService
}

func NewViolationsHandler(templates TemplateExecutor, sessions *auth.SessionManager, violations *services.ViolationService) *ViolationsHandler {
	return &ViolationsHandler{
		pages:      pages{templates: templates, sessions: sessions},
		violations: violations,
	}
}

func (h *ViolationsHandler) NewPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "violation_new.html", h.data(r, "Record Violation", "violation_new"))
}

// Create stores the submitted violation for the current officer. The form
// sends the date and the time as separate fields.
func (h *ViolationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	in := services.ViolationInput{
		CarID:      r.PostFormValue("car_id"),
		Reason:     r.PostFormValue("violation_reason"),
		FineAmount: r.PostFormValue("fine_amount"),
		Checkpoint: r.PostFormValue("checkpoint_position"),
		OccurredAt: occurredAt(r),
	}

	if _, err := h.violations.Create(r.Context(), user.ID, in); err != nil {
		messages, status := errorMessages(r, err)
		data := h.data(r, "Record Violation", "violation_new")
		data["Errors"] = messages
		data["Form"] = map[string]string{
			"CarID":      in.CarID,
			"Reason":     in.Reason,
			"FineAmount": in.FineAmount,
			"Checkpoint": in.Checkpoint,
			"Date":       r.PostFormValue("violation_date"),
			"Time":       r.PostFormValue("violation_time"),
		}
		h.render(w, status, "violation_new.html", data)
		return
	}

	h.sessions.SetFlash(r.Context(), "Violation recorded successfully.")
	redirect(w, r, "/violations/mine")
}

// Mine lists the current officer's violations, latest first.
func (h *ViolationsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	records, err := h.violations.ListByOfficer(r.Context(), user.ID, violationsPerPage, (page-1)*violationsPerPage)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	total, err := h.violations.CountByOfficer(r.Context(), user.ID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	data := h.data(r, "My Violations", "violations_mine")
	data["Violations"] = records
	data["Total"] = total
	data["Page"] = page
	data["HasNext"] = page*violationsPerPage < total
	data["PrevPage"] = page - 1
	data["NextPage"] = page + 1
	h.render(w, http.StatusOK, "violations_mine.html", data)
}

func occurredAt(r *http.Request) string {
	if dt := r.PostFormValue("violation_datetime"); dt != "" {
		return strings.Replace(dt, "T", " ", 1)
	}
	return strings.TrimSpace(r.PostFormValue("violation_date")) + " " + strings.TrimSpace(r.PostFormValue("violation_time"))
}
