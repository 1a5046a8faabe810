package services

import (
	"context"
	"testing"
	"time"

	apperrors "trafficnotes/internal/errors"
	"trafficnotes/internal/models"
	"trafficnotes/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViolationService(t *testing.T) (*ViolationService, *fakeClock, *models.User) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	clock := newClock()
	audit := NewAuditService(db)
	audit.now = clock.Now
	svc := NewViolationService(db, audit)
	svc.now = clock.Now
	officer := testutil.CreateTestUser(t, db, "officer1", models.RolePoliceman)
	return svc, clock, officer
}

func validInput(at time.Time) ViolationInput {
	return ViolationInput{
		CarID:      "ABC-1234",
		Reason:     "Ran a red light at the junction",
		FineAmount: "150.50",
		Checkpoint: "Checkpoint North",
		OccurredAt: at.Format(ViolationTimeLayout),
	}
}

func TestViolationCreate(t *testing.T) {
	svc, clock, officer := newViolationService(t)
	ctx := context.Background()

	yesterday := clock.Now().Add(-24 * time.Hour)
	v, err := svc.Create(ctx, officer.ID, validInput(yesterday))
	require.NoError(t, err)
	assert.NotZero(t, v.ID)
	assert.Equal(t, 150.50, v.FineAmount)
	assert.True(t, v.ViolationAt.Equal(yesterday.Truncate(time.Minute)))

	mine, err := svc.ListByOfficer(ctx, officer.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "ABC-1234", mine[0].CarID)
	assert.True(t, mine[0].ViolationAt.Equal(v.ViolationAt))

	assert.Equal(t, 1, testutil.CountAudit(t, svc.db, models.ActionViolationSubmitted, `"car_id":"ABC-1234"`))
}

func TestViolationCreateRejectsFuture(t *testing.T) {
	svc, clock, officer := newViolationService(t)

	_, err := svc.Create(context.Background(), officer.ID, validInput(clock.Now().Add(time.Hour)))
	appErr := testutil.AssertAppError(t, err, apperrors.ErrValidation.Code)
	assert.Equal(t, []string{"Violation cannot be in the future"}, appErr.Details)

	count, err := svc.CountByOfficer(context.Background(), officer.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestViolationCreateAccumulatesErrors(t *testing.T) {
	svc, _, officer := newViolationService(t)

	_, err := svc.Create(context.Background(), officer.ID, ViolationInput{
		CarID:      "AB",
		Reason:     "short",
		FineAmount: "20000",
		Checkpoint: "gate",
		OccurredAt: "2026-03-01 9:00",
	})
	appErr := testutil.AssertAppError(t, err, apperrors.ErrValidation.Code)
	assert.Equal(t, []string{
		"Car ID must be between 3 and 20 characters",
		"Violation reason must be between 10 and 500 characters",
		"Fine amount must be between 0 and 10000",
		"Checkpoint must be between 5 and 255 characters",
		"Invalid date/time format",
	}, appErr.Details)
}

func TestViolationCreateFineBounds(t *testing.T) {
	svc, clock, officer := newViolationService(t)
	ctx := context.Background()
	at := clock.Now().Add(-time.Hour)

	for _, fine := range []string{"0", "10000"} {
		in := validInput(at)
		in.FineAmount = fine
		_, err := svc.Create(ctx, officer.ID, in)
		assert.NoError(t, err, fine)
	}
	for _, fine := range []string{"-1", "10000.5", "ten"} {
		in := validInput(at)
		in.FineAmount = fine
		_, err := svc.Create(ctx, officer.ID, in)
		testutil.AssertAppError(t, err, apperrors.ErrValidation.Code)
	}
}

func TestViolationListFilters(t *testing.T) {
	svc, _, officer := newViolationService(t)
	ctx := context.Background()
	other := testutil.CreateTestUser(t, svc.db, "officer2", models.RolePoliceman)

	day := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	testutil.CreateTestViolation(t, svc.db, officer.ID, "ABC-1234", day.Add(8*time.Hour), 100)
	testutil.CreateTestViolation(t, svc.db, officer.ID, "XYZ-9999", day.Add(23*time.Hour+59*time.Minute), 50)
	testutil.CreateTestViolation(t, svc.db, other.ID, "abc-5555", day.Add(24*time.Hour), 75)

	all, err := svc.List(ctx, models.ViolationFilter{}, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "abc-5555", all[0].CarID, "latest first")
	assert.Equal(t, "officer2", all[0].OfficerUsername)

	byCar, err := svc.List(ctx, models.ViolationFilter{CarID: "ABC"}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, byCar, 2, "car id match is case-insensitive")

	byDay, err := svc.List(ctx, models.ViolationFilter{DateFrom: "2026-03-05", DateTo: "2026-03-05"}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, byDay, 2, "23:59 is inside the day")

	byOfficer, err := svc.List(ctx, models.ViolationFilter{UserID: other.ID}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, byOfficer, 1)

	_, err = svc.List(ctx, models.ViolationFilter{DateFrom: "05/03/2026"}, 0, 0)
	testutil.AssertAppError(t, err, apperrors.ErrValidation.Code)
}

func TestViolationGet(t *testing.T) {
	svc, clock, officer := newViolationService(t)
	ctx := context.Background()

	id := testutil.CreateTestViolation(t, svc.db, officer.ID, "ABC-1234", clock.Now().Add(-time.Hour), 100)

	v, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Officer officer1", v.OfficerName)

	_, err = svc.Get(ctx, id+100)
	testutil.AssertAppError(t, err, apperrors.ErrViolationNotFound.Code)
}

func TestViolationStatisticsRange(t *testing.T) {
	svc, _, officer := newViolationService(t)
	ctx := context.Background()
	idle := testutil.CreateTestUser(t, svc.db, "officer2", models.RolePoliceman)
	testutil.CreateTestUser(t, svc.db, "admin", models.RoleAdmin)

	testutil.CreateTestViolation(t, svc.db, officer.ID, "IN-0001", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 100)
	testutil.CreateTestViolation(t, svc.db, officer.ID, "IN-0002", time.Date(2026, 3, 3, 23, 59, 0, 0, time.UTC), 50)
	testutil.CreateTestViolation(t, svc.db, officer.ID, "OUT-0001", time.Date(2026, 2, 28, 23, 59, 0, 0, time.UTC), 1000)
	testutil.CreateTestViolation(t, svc.db, officer.ID, "OUT-0002", time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), 1000)

	stats, err := svc.Statistics(ctx, "2026-03-01", "2026-03-03")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalViolations)
	assert.InDelta(t, 150.0, stats.TotalCollected, 0.001)

	require.Len(t, stats.ByOfficer, 2, "only policemen, including those without records")
	assert.Equal(t, officer.ID, stats.ByOfficer[0].UserID)
	assert.Equal(t, 2, stats.ByOfficer[0].ViolationCount)
	assert.InDelta(t, 150.0, stats.ByOfficer[0].AmountCollected, 0.001)
	assert.Equal(t, idle.ID, stats.ByOfficer[1].UserID)
	assert.Zero(t, stats.ByOfficer[1].ViolationCount)

	require.Len(t, stats.ByDate, 2)
	assert.Equal(t, "2026-03-03", stats.ByDate[0].Date)
	assert.Equal(t, "2026-03-01", stats.ByDate[1].Date)
}

func TestViolationStatisticsDefaultWindow(t *testing.T) {
	svc, clock, officer := newViolationService(t)
	ctx := context.Background()

	testutil.CreateTestViolation(t, svc.db, officer.ID, "NEW-0001", clock.Now().AddDate(0, 0, -2), 10)
	testutil.CreateTestViolation(t, svc.db, officer.ID, "OLD-0001", clock.Now().AddDate(0, 0, -45), 20)

	stats, err := svc.Statistics(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalViolations)
	assert.InDelta(t, 30.0, stats.TotalCollected, 0.001)
	require.Len(t, stats.ByDate, 1, "daily series covers the last 30 days")
	assert.Equal(t, "2026-03-08", stats.ByDate[0].Date)
}
