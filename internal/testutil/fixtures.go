package testutil

import (
	"testing"
	"time"

	"trafficnotes/internal/database"
	"trafficnotes/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// DefaultPassword satisfies the password strength rules.
const DefaultPassword = "Officer@123"

// CreateTestUser inserts an active user with DefaultPassword.
func CreateTestUser(t *testing.T, db *database.DB, username string, role models.Role) *models.User {
	t.Helper()
	return CreateTestUserWithPassword(t, db, username, role, DefaultPassword)
}

// CreateTestUserWithPassword inserts an active user hashed at bcrypt.MinCost.
func CreateTestUserWithPassword(t *testing.T, db *database.DB, username string, role models.Role, password string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Username:     username,
		Email:        username + "@police.local",
		FullName:     "Officer " + username,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}

	result, err := db.Exec(
		`INSERT INTO users (username, email, full_name, password_hash, role, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.Username, user.Email, user.FullName, user.PasswordHash, user.Role, user.IsActive, user.CreatedAt,
	)
	if err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	user.ID, _ = result.LastInsertId()
	return user
}

// DeactivateUser flips is_active off for id.
func DeactivateUser(t *testing.T, db *database.DB, id int64) {
	t.Helper()

	if _, err := db.Exec("UPDATE users SET is_active = FALSE WHERE id = ?", id); err != nil {
		t.Fatalf("failed to deactivate user: %v", err)
	}
}

// CreateTestViolation inserts a violation owned by userID.
func CreateTestViolation(t *testing.T, db *database.DB, userID int64, carID string, at time.Time, fine float64) int64 {
	t.Helper()

	result, err := db.Exec(
		`INSERT INTO violations (user_id, car_id, violation_reason, violation_datetime, checkpoint_position, fine_amount, created_at)
		 VALUES (?, ?, 'Speeding through a school zone', ?, 'Main Street', ?, ?)`,
		userID, carID, at.UTC(), fine, time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("failed to create test violation: %v", err)
	}

	id, _ := result.LastInsertId()
	return id
}

// CountAudit counts audit rows with action whose details contain fragment.
func CountAudit(t *testing.T, db *database.DB, action, fragment string) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM audit_logs WHERE action = ? AND COALESCE(details, '') LIKE ?",
		action, "%"+fragment+"%",
	).Scan(&count)
	if err != nil {
		t.Fatalf("failed to count audit logs: %v", err)
	}
	return count
}
