package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"trafficnotes/internal/auth"
	"trafficnotes/internal/config"
	"trafficnotes/internal/database"
	apperrors "trafficnotes/internal/errors"
	"trafficnotes/internal/logger"
	"trafficnotes/internal/models"
	"trafficnotes/internal/services"
)

const (
	adminPassword   = "Admin@123"
	officerPassword = "Officer@123"
)

type seedUser struct {
	username, email, fullName, password string
	role                                models.Role
}

type seedViolation struct {
	officer    int
	carID      string
	reason     string
	daysAgo    int
	checkpoint string
	fine       string
}

var seedUsers = []seedUser{
	{"admin", "admin@police.local", "Chief Inspector Admin", adminPassword, models.RoleAdmin},
	{"officer1", "officer1@police.local", "Sergeant First Officer", officerPassword, models.RolePoliceman},
	{"officer2", "officer2@police.local", "Sergeant Second Officer", officerPassword, models.RolePoliceman},
}

var seedViolations = []seedViolation{
	{0, "ABC-1234", "Speeding: 80 km/h in a 60 km/h zone", 5, "Main Street, Downtown", "200"},
	{1, "DEF-5678", "Ran a red light at the intersection", 3, "Circular Road, North", "150"},
	{0, "GHI-9012", "Parked in a no-parking zone near the school", 2, "University Road", "100"},
	{1, "JKL-3456", "Driving without a valid license", 1, "Highway Checkpoint 4", "500"},
	{0, "MNO-7890", "Mobile phone use while driving", 0, "Harbour Bridge East", "75.50"},
}

func main() {
	logger.Init(os.Getenv("APP_ENV"))
	defer logger.Sync()

	if err := run(context.Background()); err != nil {
		logger.Get().Fatalw("seeding failed", "error", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.New(filepath.Join(cfg.DataDir, "violations.db"))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	audit := services.NewAuditService(db)
	users := auth.NewUserService(db, audit, auth.BcryptHasher{Cost: cfg.BcryptCost})
	violations := services.NewViolationService(db, audit)
	log := logger.Get()

	var officerIDs []int64
	for _, u := range seedUsers {
		user, err := users.Register(ctx, auth.RegisterInput{
			Username:        u.username,
			Email:           u.email,
			FullName:        u.fullName,
			Password:        u.password,
			ConfirmPassword: u.password,
			Role:            string(u.role),
		})
		if err != nil {
			if !errors.Is(err, apperrors.ErrValidation) {
				return err
			}
			// Already seeded on an earlier run.
			user, err = users.GetByUsername(ctx, u.username)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", u.username, err)
			}
			log.Infow("user exists", "username", u.username)
		} else {
			log.Infow("user created", "username", u.username, "role", u.role)
		}
		if user.Role == models.RolePoliceman {
			officerIDs = append(officerIDs, user.ID)
		}
	}

	count, err := violations.CountByOfficer(ctx, 0)
	if err != nil {
		return err
	}
	if count > 0 {
		log.Infow("violations already present, skipping", "count", count)
		return nil
	}

	now := time.Now().UTC().Add(-time.Hour)
	for _, v := range seedViolations {
		at := now.AddDate(0, 0, -v.daysAgo)
		_, err := violations.Create(ctx, officerIDs[v.officer], services.ViolationInput{
			CarID:      v.carID,
			Reason:     v.reason,
			FineAmount: v.fine,
			Checkpoint: v.checkpoint,
			OccurredAt: at.Format(services.ViolationTimeLayout),
		})
		if err != nil {
			return fmt.Errorf("failed to create violation %s: %w", v.carID, err)
		}
	}
	log.Infow("violations created", "count", len(seedViolations))

	log.Infof("Admin login: admin / %s", adminPassword)
	log.Infof("Officer logins: officer1, officer2 / %s", officerPassword)
	return nil
}
