package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"trafficnotes/internal/auth"
	apperrors "trafficnotes/internal/errors"
	"trafficnotes/internal/middleware"
	"trafficnotes/internal/models"
	"trafficnotes/internal/services"

	"github.com/go-chi/chi/v5"
)

const auditPageSize = 100

// auditActions feeds the action filter on the audit page.
var auditActions = []string{
	models.ActionLoginSuccess,
	models.ActionLoginFailed,
	models.ActionLogout,
	models.ActionUserRegistered,
	models.ActionPasswordChanged,
	models.ActionAccountDeactivated,
	models.ActionAccountActivated,
	models.ActionViolationSubmitted,
	models.ActionAdminAccess,
	models.ActionReportExported,
	models.ActionUnauthorizedAccess,
}

type AdminHandler struct {
	pages
	userService *auth.UserService
	audit       *services.AuditService
}

func NewAdminHandler(templates TemplateExecutor, sessions *auth.SessionManager, userService *auth.UserService, audit *services.AuditService) *AdminHandler {
	return &AdminHandler{
		pages:       pages{templates: templates, sessions: sessions},
		userService: userService,
		audit:       audit,
	}
}

func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	h.audit.LogAdminAccess(r.Context(), user.ID, "users", nil)

	users, err := h.userService.List(r.Context(), "")
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	data := h.data(r, "Users", "users")
	data["Users"] = users
	h.render(w, http.StatusOK, "users.html", data)
}

func (h *AdminHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *AdminHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *AdminHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	user := middleware.GetUser(r)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.renderError(w, r, apperrors.ErrUserNotFound)
		return
	}

	if err := h.userService.SetActive(r.Context(), user.ID, id, active); err != nil {
		messages, _ := errorMessages(r, err)
		h.sessions.SetFlash(r.Context(), strings.Join(messages, " "))
		redirect(w, r, "/admin/users")
		return
	}

	msg := "Account deactivated."
	if active {
		msg = "Account activated."
	}
	h.sessions.SetFlash(r.Context(), msg)
	redirect(w, r, "/admin/users")
}

// Audit lists the newest audit entries, narrowed by the action and user_id
// query parameters.
func (h *AdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	action := strings.TrimSpace(r.URL.Query().Get("action"))
	userID, _ := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)

	h.audit.LogAdminAccess(r.Context(), user.ID, "audit", nil)

	var (
		entries []models.AuditLog
		err     error
	)
	if userID > 0 && action == "" {
		entries, err = h.audit.UserActivity(r.Context(), userID, auditPageSize)
	} else {
		entries, err = h.audit.List(r.Context(), models.AuditFilter{Action: action, UserID: userID, Limit: auditPageSize})
	}
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	data := h.data(r, "Audit Log", "audit")
	data["Entries"] = entries
	data["Action"] = action
	data["Actions"] = auditActions
	data["UserID"] = userID
	h.render(w, http.StatusOK, "audit.html", data)
}
