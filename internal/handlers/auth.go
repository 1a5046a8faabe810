package handlers

import (
	"net/http"

	"trafficnotes/internal/auth"
	apperrors "trafficnotes/internal/errors"
	"trafficnotes/internal/models"
	"trafficnotes/internal/reqctx"
)

type AuthHandler struct {
	pages
	authenticator *auth.Authenticator
	userService   *auth.UserService
}

func NewAuthHandler(templates TemplateExecutor, sessions *auth.SessionManager, authenticator *auth.Authenticator, userService *auth.UserService) *AuthHandler {
	return &AuthHandler{
		pages:         pages{templates: templates, sessions: sessions},
		authenticator: authenticator,
		userService:   userService,
	}
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	// Already logged in
	if u := h.sessions.User(r.Context()); u != nil {
		http.Redirect(w, r, homeFor(u.Role), http.StatusSeeOther)
		return
	}

	h.render(w, http.StatusOK, "login.html", h.data(r, "Login", "login"))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	client := reqctx.ClientFrom(r.Context())

	user, err := h.authenticator.Authenticate(r.Context(), username, password, client.IP)
	if err != nil {
		h.renderLoginError(w, r, username, err)
		return
	}

	role, err := h.sessions.Login(r.Context(), user.ID, user.Username)
	if err != nil {
		h.renderLoginError(w, r, username, err)
		return
	}

	redirect(w, r, homeFor(role))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context())
	redirect(w, r, "/login")
}

func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	if u := h.sessions.User(r.Context()); u != nil {
		http.Redirect(w, r, homeFor(u.Role), http.StatusSeeOther)
		return
	}

	h.render(w, http.StatusOK, "register.html", h.data(r, "Register", "register"))
}

// Register creates a policeman account. The role field of the form is
// ignored.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	in := auth.RegisterInput{
		Username:        r.PostFormValue("username"),
		Email:           r.PostFormValue("email"),
		FullName:        r.PostFormValue("full_name"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
		Role:            string(models.RolePoliceman),
	}

	if _, err := h.userService.Register(r.Context(), in); err != nil {
		messages, status := errorMessages(r, err)
		data := h.data(r, "Register", "register")
		data["Errors"] = messages
		data["Form"] = map[string]string{
			"Username": in.Username,
			"Email":    in.Email,
			"FullName": in.FullName,
		}
		h.render(w, status, "register.html", data)
		return
	}

	h.sessions.SetFlash(r.Context(), "Registration successful. Please login.")
	redirect(w, r, "/login")
}

// Home sends each role to its landing page.
func (h *AuthHandler) Home(w http.ResponseWriter, r *http.Request) {
	u := h.sessions.User(r.Context())
	if u == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, homeFor(u.Role), http.StatusSeeOther)
}

func (h *AuthHandler) renderLoginError(w http.ResponseWriter, r *http.Request, username string, err error) {
	messages, status := errorMessages(r, err)

	data := h.data(r, "Login", "login")
	data["Errors"] = messages
	data["Username"] = username
	if appErr := apperrors.From(err); appErr.Code == apperrors.ErrRateLimited.Code {
		data["RateLimited"] = true
		data["Remaining"] = appErr.Remaining
	}
	h.render(w, status, "login.html", data)
}

func homeFor(role models.Role) string {
	switch role {
	case models.RoleAdmin:
		return "/dashboard"
	case models.RolePoliceman:
		return "/violations/new"
	default:
		return "/login"
	}
}
