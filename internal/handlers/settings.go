package handlers

import (
	"net/http"

	"trafficnotes/internal/auth"
	"trafficnotes/internal/middleware"
)

type SettingsHandler struct {
	pages
	userService *auth.UserService
}

func NewSettingsHandler(templates TemplateExecutor, sessions *auth.SessionManager, userService *auth.UserService) *SettingsHandler {
	return &SettingsHandler{
		pages:       pages{templates: templates, sessions: sessions},
		userService: userService,
	}
}

func (h *SettingsHandler) PasswordPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "password.html", h.data(r, "Change Password", "password"))
}

func (h *SettingsHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	err := h.userService.ChangePassword(r.Context(), user.ID,
		r.PostFormValue("current_password"),
		r.PostFormValue("new_password"),
		r.PostFormValue("confirm_password"),
	)
	if err != nil {
		messages, status := errorMessages(r, err)
		data := h.data(r, "Change Password", "password")
		data["Errors"] = messages
		h.render(w, status, "password.html", data)
		return
	}

	h.sessions.SetFlash(r.Context(), "Password changed successfully")
	redirect(w, r, "/settings/password")
}
