package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"trafficnotes/internal/database"
	"trafficnotes/internal/logger"
	"trafficnotes/internal/models"
	"trafficnotes/internal/reqctx"
)

// AuditService appends security-relevant actions to audit_logs. Writes never
// fail the caller: errors are logged and dropped.
type AuditService struct {
	db  *database.DB
	now func() time.Time
}

func NewAuditService(db *database.DB) *AuditService {
	return &AuditService{db: db, now: time.Now}
}

// Log records an action. IP address and user agent come from the request
// context.
func (s *AuditService) Log(ctx context.Context, userID *int64, action, entityType string, entityID *int64, details map[string]any) {
	var detailsJSON sql.NullString
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			logger.Get().Errorw("failed to marshal audit details", "error", err, "action", action)
			detailsJSON = sql.NullString{String: "{}", Valid: true}
		} else {
			detailsJSON = sql.NullString{String: string(data), Valid: true}
		}
	}

	client := reqctx.ClientFrom(ctx)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (user_id, action, entity_type, entity_id, ip_address, user_agent, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, action, nullString(entityType), entityID, client.IP, client.UserAgent, detailsJSON, s.now().UTC(),
	)
	if err != nil {
		logger.Get().Errorw("failed to create audit log entry",
			"error", err,
			"action", action,
			"entity_type", entityType,
		)
	}
}

// LogLoginAttempt records LOGIN_SUCCESS or LOGIN_FAILED for username.
func (s *AuditService) LogLoginAttempt(ctx context.Context, userID *int64, username string, success bool, details map[string]any) {
	merged := map[string]any{"username": username}
	for k, v := range details {
		merged[k] = v
	}

	action := models.ActionLoginFailed
	if success {
		action = models.ActionLoginSuccess
	}
	s.Log(ctx, userID, action, "user", userID, merged)
}

func (s *AuditService) LogViolationSubmission(ctx context.Context, userID, violationID int64, carID string) {
	s.Log(ctx, &userID, models.ActionViolationSubmitted, "violation", &violationID, map[string]any{"car_id": carID})
}

func (s *AuditService) LogAdminAccess(ctx context.Context, userID int64, page string, details map[string]any) {
	merged := map[string]any{"page": page}
	for k, v := range details {
		merged[k] = v
	}
	s.Log(ctx, &userID, models.ActionAdminAccess, "page", nil, merged)
}

// List returns entries newest first, optionally narrowed by action or user.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error) {
	var (
		where []string
		args  []any
	)
	if filter.Action != "" {
		where = append(where, "a.action = ?")
		args = append(args, filter.Action)
	}
	if filter.UserID > 0 {
		where = append(where, "a.user_id = ?")
		args = append(args, filter.UserID)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT a.id, a.user_id, COALESCE(u.username, ''), a.action, COALESCE(a.entity_type, ''), a.entity_id,
		       COALESCE(a.ip_address, ''), COALESCE(a.user_agent, ''), COALESCE(a.details, ''), a.created_at
		FROM audit_logs a
		LEFT JOIN users u ON a.user_id = u.id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY a.created_at DESC, a.id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var (
			entry    models.AuditLog
			userID   sql.NullInt64
			entityID sql.NullInt64
		)
		if err := rows.Scan(&entry.ID, &userID, &entry.Username, &entry.Action, &entry.EntityType, &entityID,
			&entry.IPAddress, &entry.UserAgent, &entry.Details, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		if userID.Valid {
			entry.UserID = &userID.Int64
		}
		if entityID.Valid {
			entry.EntityID = &entityID.Int64
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// UserActivity returns the latest entries recorded against userID.
func (s *AuditService) UserActivity(ctx context.Context, userID int64, limit int) ([]models.AuditLog, error) {
	return s.List(ctx, models.AuditFilter{UserID: userID, Limit: limit})
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
