package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"trafficnotes/internal/models"
	"trafficnotes/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReportExportXLSX(t *testing.T) {
	svc, _, officer := newViolationService(t)
	report := NewReportService(svc)
	ctx := context.Background()

	testutil.CreateTestViolation(t, svc.db, officer.ID, "ABC-1234", time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC), 100)
	testutil.CreateTestViolation(t, svc.db, officer.ID, "XYZ-9999", time.Date(2026, 2, 1, 10, 30, 0, 0, time.UTC), 40)

	var buf bytes.Buffer
	require.NoError(t, report.ExportXLSX(ctx, &buf, models.ViolationFilter{DateFrom: "2026-03-01", DateTo: "2026-03-05"}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{summarySheet, officersSheet, violationsSheet}, f.GetSheetList())

	period, err := f.GetCellValue(summarySheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01 to 2026-03-05", period)

	total, err := f.GetCellValue(summarySheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "1", total)

	rows, err := f.GetRows(violationsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2, "header plus the one in-range violation")
	assert.Equal(t, "ABC-1234", rows[1][1])
	assert.Equal(t, "2026-03-02 10:30", rows[1][3])
	assert.Equal(t, "Officer officer1", rows[1][6])

	officers, err := f.GetRows(officersSheet)
	require.NoError(t, err)
	require.Len(t, officers, 2)
	assert.Equal(t, "officer1", officers[1][0])
}
