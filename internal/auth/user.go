package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"trafficnotes/internal/database"
	apperrors "trafficnotes/internal/errors"
	"trafficnotes/internal/logger"
	"trafficnotes/internal/models"
	"trafficnotes/internal/services"
	"trafficnotes/internal/validator"
)

// RegisterInput is the raw registration form.
type RegisterInput struct {
	Username        string `validate:"min=3,max=50"`
	Email           string `validate:"email"`
	FullName        string `validate:"min=2,max=100"`
	Password        string
	ConfirmPassword string `validate:"eqfield=Password"`
	Role            string
}

var registerMessages = map[string]string{
	"Username":        "Username must be between 3 and 50 characters",
	"Email":           "Invalid email format",
	"FullName":        "Full name must be between 2 and 100 characters",
	"ConfirmPassword": "Passwords do not match",
}

const userColumns = "id, username, email, full_name, password_hash, role, is_active, created_at, last_login"

type UserService struct {
	db       *database.DB
	audit    *services.AuditService
	hasher   PasswordHasher
	validate *validator.Validator
	now      func() time.Time
}

func NewUserService(db *database.DB, audit *services.AuditService, hasher PasswordHasher) *UserService {
	return &UserService{
		db:       db,
		audit:    audit,
		hasher:   hasher,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Register validates input, reporting every problem at once, then stores
// the user with a hashed password.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)

	errs := s.validate.Struct(in, registerMessages)
	errs = append(errs, validator.PasswordStrength(in.Password)...)
	if !s.validate.Var(in.Role, "role") {
		errs = append(errs, "Invalid role specified")
	}

	taken, err := s.exists(ctx, "username", in.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		errs = append(errs, "Username already exists")
	}
	taken, err = s.exists(ctx, "email", in.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		errs = append(errs, "Email already exists")
	}

	if len(errs) > 0 {
		return nil, apperrors.Validation(errs)
	}

	user, err := s.Create(ctx, in.Username, in.Email, in.FullName, in.Password, models.Role(in.Role))
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, &user.ID, models.ActionUserRegistered, "user", &user.ID, map[string]any{"role": string(user.Role)})
	return user, nil
}

// Create inserts a user without validating the fields. UNIQUE conflicts come
// back as validation errors.
func (s *UserService) Create(ctx context.Context, username, email, fullName, password string, role models.Role) (*models.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    s.now().UTC(),
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, full_name, password_hash, role, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.Username, user.Email, user.FullName, user.PasswordHash, user.Role, user.IsActive, user.CreatedAt,
	)
	if err != nil {
		switch {
		case database.IsUniqueConstraintError(err, "users.username"):
			return nil, apperrors.Validation([]string{"Username already exists"})
		case database.IsUniqueConstraintError(err, "users.email"):
			return nil, apperrors.Validation([]string{"Email already exists"})
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	user.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get user id: %w", err)
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getBy(ctx, "id", id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getBy(ctx, "username", username)
}

// List returns users ordered by username, limited to role when non-empty.
func (s *UserService) List(ctx context.Context, role models.Role) ([]models.User, error) {
	query := "SELECT " + userColumns + " FROM users"
	var args []any
	if role != "" {
		query += " WHERE role = ?"
		args = append(args, role)
	}
	query += " ORDER BY username"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (s *UserService) UpdateLastLogin(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE users SET last_login = ? WHERE id = ?", s.now().UTC(), id); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// CheckPassword reports whether password matches the user's stored hash.
func (s *UserService) CheckPassword(user *models.User, password string) bool {
	return s.hasher.Verify(user.PasswordHash, password)
}

// ChangePassword replaces the password of userID after checking the current
// one and the strength rules.
func (s *UserService) ChangePassword(ctx context.Context, userID int64, current, next, confirm string) error {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	var errs []string
	if !s.CheckPassword(user, current) {
		errs = append(errs, "Current password is incorrect")
	}
	if next != confirm {
		errs = append(errs, "Passwords do not match")
	}
	errs = append(errs, validator.PasswordStrength(next)...)
	if len(errs) > 0 {
		return apperrors.Validation(errs)
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", hash, userID); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.audit.Log(ctx, &userID, models.ActionPasswordChanged, "user", &userID, nil)
	return nil
}

// SetActive enables or disables userID on behalf of actorID. Admins cannot
// disable themselves.
func (s *UserService) SetActive(ctx context.Context, actorID, userID int64, active bool) error {
	if !active && actorID == userID {
		return apperrors.Validation([]string{"You cannot deactivate your own account"})
	}

	result, err := s.db.ExecContext(ctx, "UPDATE users SET is_active = ? WHERE id = ?", active, userID)
	if err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperrors.ErrUserNotFound
	}

	action := models.ActionAccountDeactivated
	if active {
		action = models.ActionAccountActivated
	}
	s.audit.Log(ctx, &actorID, action, "user", &userID, nil)
	return nil
}

func (s *UserService) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// EnsureDefaultAdmin creates an admin account when the users table is empty.
func (s *UserService) EnsureDefaultAdmin(ctx context.Context, username, email, password string) error {
	count, err := s.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	user, err := s.Create(ctx, username, email, "System Administrator", password, models.RoleAdmin)
	if err != nil {
		return err
	}
	logger.Get().Infow("created default admin account", "username", user.Username)
	return nil
}

func (s *UserService) getBy(ctx context.Context, column string, value any) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+column+" = ?", value)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *UserService) exists(ctx context.Context, column, value string) (bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM users WHERE "+column+" = ?", value).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check %s: %w", column, err)
	}
	return true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(sc scanner) (*models.User, error) {
	var (
		user      models.User
		lastLogin sql.NullTime
	)
	if err := sc.Scan(&user.ID, &user.Username, &user.Email, &user.FullName, &user.PasswordHash,
		&user.Role, &user.IsActive, &user.CreatedAt, &lastLogin); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	return &user, nil
}
