package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"trafficnotes/internal/database"
	apperrors "trafficnotes/internal/errors"
	"trafficnotes/internal/models"
	"trafficnotes/internal/validator"
)

const (
	// ViolationTimeLayout is the only accepted form of the violation time.
	ViolationTimeLayout = "2006-01-02 15:04"
	filterDateLayout    = "2006-01-02"

	defaultListLimit = 100
	statsDays        = 30
)

// ViolationInput is the raw form submitted by an officer.
type ViolationInput struct {
	CarID      string `validate:"min=3,max=20"`
	Reason     string `validate:"min=10,max=500"`
	FineAmount string `validate:"amount=10000"`
	Checkpoint string `validate:"min=5,max=255"`
	OccurredAt string
}

var violationMessages = map[string]string{
	"CarID":      "Car ID must be between 3 and 20 characters",
	"Reason":     "Violation reason must be between 10 and 500 characters",
	"FineAmount": "Fine amount must be between 0 and 10000",
	"Checkpoint": "Checkpoint must be between 5 and 255 characters",
}

type ViolationService struct {
	db       *database.DB
	audit    *AuditService
	validate *validator.Validator
	now      func() time.Time
}

func NewViolationService(db *database.DB, audit *AuditService) *ViolationService {
	return &ViolationService{
		db:       db,
		audit:    audit,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Create validates input, stores it for userID and audits the submission.
func (s *ViolationService) Create(ctx context.Context, userID int64, input ViolationInput) (*models.Violation, error) {
	input.CarID = strings.TrimSpace(input.CarID)
	input.Reason = strings.TrimSpace(input.Reason)
	input.FineAmount = strings.TrimSpace(input.FineAmount)
	input.Checkpoint = strings.TrimSpace(input.Checkpoint)
	input.OccurredAt = strings.TrimSpace(input.OccurredAt)

	errs := s.validate.Struct(input, violationMessages)

	occurredAt, err := time.ParseInLocation(ViolationTimeLayout, input.OccurredAt, time.UTC)
	if err != nil || occurredAt.Format(ViolationTimeLayout) != input.OccurredAt {
		errs = append(errs, "Invalid date/time format")
	} else if occurredAt.After(s.now()) {
		errs = append(errs, "Violation cannot be in the future")
	}

	if len(errs) > 0 {
		return nil, apperrors.Validation(errs)
	}

	fine, _ := strconv.ParseFloat(input.FineAmount, 64)

	v := &models.Violation{
		UserID:             userID,
		CarID:              input.CarID,
		Reason:             input.Reason,
		ViolationAt:        occurredAt,
		CheckpointPosition: input.Checkpoint,
		FineAmount:         fine,
		CreatedAt:          s.now().UTC(),
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO violations (user_id, car_id, violation_reason, violation_datetime, checkpoint_position, fine_amount, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.UserID, v.CarID, v.Reason, v.ViolationAt, v.CheckpointPosition, v.FineAmount, v.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create violation: %w", err)
	}

	v.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get violation id: %w", err)
	}

	s.audit.LogViolationSubmission(ctx, userID, v.ID, v.CarID)
	return v, nil
}

// ListByOfficer returns userID's violations, latest violation time first.
func (s *ViolationService) ListByOfficer(ctx context.Context, userID int64, limit, offset int) ([]models.Violation, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, car_id, violation_reason, violation_datetime, checkpoint_position, fine_amount, created_at
		 FROM violations
		 WHERE user_id = ?
		 ORDER BY violation_datetime DESC, id DESC
		 LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list violations: %w", err)
	}
	defer rows.Close()

	var out []models.Violation
	for rows.Next() {
		var v models.Violation
		if err := rows.Scan(&v.ID, &v.UserID, &v.CarID, &v.Reason, &v.ViolationAt,
			&v.CheckpointPosition, &v.FineAmount, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CountByOfficer counts userID's violations, or all violations when userID is 0.
func (s *ViolationService) CountByOfficer(ctx context.Context, userID int64) (int, error) {
	var (
		count int
		err   error
	)
	if userID > 0 {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM violations WHERE user_id = ?", userID).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM violations").Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count violations: %w", err)
	}
	return count, nil
}

// List returns violations joined with their officer, newest first.
func (s *ViolationService) List(ctx context.Context, filter models.ViolationFilter, limit, offset int) ([]models.Violation, error) {
	where, args, err := rangeClause("v.violation_datetime", filter.DateFrom, filter.DateTo)
	if err != nil {
		return nil, err
	}
	if filter.UserID > 0 {
		where = append(where, "v.user_id = ?")
		args = append(args, filter.UserID)
	}
	if car := strings.TrimSpace(filter.CarID); car != "" {
		where = append(where, "LOWER(v.car_id) LIKE ?")
		args = append(args, "%"+strings.ToLower(car)+"%")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT v.id, v.user_id, v.car_id, v.violation_reason, v.violation_datetime, v.checkpoint_position,
		       v.fine_amount, v.created_at, u.username, u.full_name
		FROM violations v
		JOIN users u ON v.user_id = u.id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY v.violation_datetime DESC, v.id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list violations: %w", err)
	}
	defer rows.Close()

	var out []models.Violation
	for rows.Next() {
		var v models.Violation
		if err := rows.Scan(&v.ID, &v.UserID, &v.CarID, &v.Reason, &v.ViolationAt, &v.CheckpointPosition,
			&v.FineAmount, &v.CreatedAt, &v.OfficerUsername, &v.OfficerName); err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *ViolationService) Get(ctx context.Context, id int64) (*models.Violation, error) {
	var v models.Violation
	err := s.db.QueryRowContext(ctx,
		`SELECT v.id, v.user_id, v.car_id, v.violation_reason, v.violation_datetime, v.checkpoint_position,
		        v.fine_amount, v.created_at, u.username, u.full_name
		 FROM violations v
		 JOIN users u ON v.user_id = u.id
		 WHERE v.id = ?`, id,
	).Scan(&v.ID, &v.UserID, &v.CarID, &v.Reason, &v.ViolationAt, &v.CheckpointPosition,
		&v.FineAmount, &v.CreatedAt, &v.OfficerUsername, &v.OfficerName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrViolationNotFound
		}
		return nil, fmt.Errorf("failed to get violation: %w", err)
	}
	return &v, nil
}

// Statistics aggregates violations inside [from 00:00:00, to 23:59:59].
// Empty bounds are open. Without any bound the per-day series covers the
// last 30 days.
func (s *ViolationService) Statistics(ctx context.Context, from, to string) (*models.ViolationStats, error) {
	where, args, err := rangeClause("violation_datetime", from, to)
	if err != nil {
		return nil, err
	}

	stats := &models.ViolationStats{}

	totals := "SELECT COUNT(*), COALESCE(SUM(fine_amount), 0.0) FROM violations"
	if len(where) > 0 {
		totals += " WHERE " + strings.Join(where, " AND ")
	}
	if err := s.db.QueryRowContext(ctx, totals, args...).Scan(&stats.TotalViolations, &stats.TotalCollected); err != nil {
		return nil, fmt.Errorf("failed to compute violation totals: %w", err)
	}

	if stats.ByOfficer, err = s.byOfficer(ctx, from, to); err != nil {
		return nil, err
	}

	dayWhere, dayArgs := where, args
	if len(dayWhere) == 0 {
		dayWhere = []string{"violation_datetime >= ?"}
		dayArgs = []any{s.now().UTC().AddDate(0, 0, -statsDays)}
	}
	if stats.ByDate, err = s.byDate(ctx, dayWhere, dayArgs); err != nil {
		return nil, err
	}

	return stats, nil
}

func (s *ViolationService) byOfficer(ctx context.Context, from, to string) ([]models.OfficerStat, error) {
	// The range lives in the JOIN so officers without matches still show up.
	on, args, err := rangeClause("v.violation_datetime", from, to)
	if err != nil {
		return nil, err
	}
	join := "LEFT JOIN violations v ON u.id = v.user_id"
	for _, cond := range on {
		join += " AND " + cond
	}
	args = append(args, models.RolePoliceman)

	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.full_name, COUNT(v.id), COALESCE(SUM(v.fine_amount), 0.0)
		FROM users u
		`+join+`
		WHERE u.role = ?
		GROUP BY u.id, u.username, u.full_name
		ORDER BY COUNT(v.id) DESC, u.username`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to compute officer statistics: %w", err)
	}
	defer rows.Close()

	var out []models.OfficerStat
	for rows.Next() {
		var st models.OfficerStat
		if err := rows.Scan(&st.UserID, &st.Username, &st.FullName, &st.ViolationCount, &st.AmountCollected); err != nil {
			return nil, fmt.Errorf("failed to scan officer statistics: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *ViolationService) byDate(ctx context.Context, where []string, args []any) ([]models.DailyStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT substr(violation_datetime, 1, 10) AS day, COUNT(*), COALESCE(SUM(fine_amount), 0.0)
		FROM violations
		WHERE `+strings.Join(where, " AND ")+`
		GROUP BY day
		ORDER BY day DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to compute daily statistics: %w", err)
	}
	defer rows.Close()

	var out []models.DailyStat
	for rows.Next() {
		var st models.DailyStat
		if err := rows.Scan(&st.Date, &st.Count, &st.Total); err != nil {
			return nil, fmt.Errorf("failed to scan daily statistics: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// rangeClause turns inclusive YYYY-MM-DD bounds into conditions on column.
func rangeClause(column, from, to string) ([]string, []any, error) {
	var (
		where []string
		args  []any
	)
	if from = strings.TrimSpace(from); from != "" {
		start, err := time.ParseInLocation(filterDateLayout, from, time.UTC)
		if err != nil {
			return nil, nil, apperrors.Validation([]string{"Invalid start date"})
		}
		where = append(where, column+" >= ?")
		args = append(args, start)
	}
	if to = strings.TrimSpace(to); to != "" {
		end, err := time.ParseInLocation(filterDateLayout, to, time.UTC)
		if err != nil {
			return nil, nil, apperrors.Validation([]string{"Invalid end date"})
		}
		where = append(where, column+" <= ?")
		args = append(args, end.Add(24*time.Hour-time.Second))
	}
	return where, args, nil
}
