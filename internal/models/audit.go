package models

import "time"

const (
	ActionLoginSuccess       = "LOGIN_SUCCESS"
	ActionLoginFailed        = "LOGIN_FAILED"
	ActionLogout             = "LOGOUT"
	ActionUserRegistered     = "USER_REGISTERED"
	ActionPasswordChanged    = "PASSWORD_CHANGED"
	ActionAccountDeactivated = "ACCOUNT_DEACTIVATED"
	ActionAccountActivated   = "ACCOUNT_ACTIVATED"
	ActionViolationSubmitted = "VIOLATION_SUBMITTED"
	ActionAdminAccess        = "ADMIN_ACCESS"
	ActionReportExported     = "REPORT_EXPORTED"
	ActionUnauthorizedAccess = "unauthorized_access"
)

type AuditLog struct {
	ID         int64     `json:"id"`
	UserID     *int64    `json:"user_id"`
	Username   string    `json:"username,omitempty"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   *int64    `json:"entity_id"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `json:"created_at"`
}

type AuditFilter struct {
	Action string
	UserID int64
	Limit  int
	Offset int
}
