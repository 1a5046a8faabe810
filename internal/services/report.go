package services

import (
	"context"
	"fmt"
	"io"

	"trafficnotes/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet    = "Summary"
	officersSheet   = "Officers"
	violationsSheet = "Violations"

	exportLimit = 10000
)

// ReportService renders the dashboard view as an XLSX workbook.
type ReportService struct {
	violations *ViolationService
}

func NewReportService(violations *ViolationService) *ReportService {
	return &ReportService{violations: violations}
}

// ExportXLSX writes a workbook with the statistics for [filter.DateFrom,
// filter.DateTo] and every matching violation.
func (s *ReportService) ExportXLSX(ctx context.Context, w io.Writer, filter models.ViolationFilter) error {
	stats, err := s.violations.Statistics(ctx, filter.DateFrom, filter.DateTo)
	if err != nil {
		return err
	}
	records, err := s.violations.List(ctx, filter, exportLimit, 0)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	period := "All time"
	if filter.DateFrom != "" || filter.DateTo != "" {
		period = fmt.Sprintf("%s to %s", orDash(filter.DateFrom), orDash(filter.DateTo))
	}
	summary := [][]any{
		{"Period", period},
		{"Total violations", stats.TotalViolations},
		{"Total collected", stats.TotalCollected},
		{},
		{"Date", "Violations", "Amount"},
	}
	for _, d := range stats.ByDate {
		summary = append(summary, []any{d.Date, d.Count, d.Total})
	}
	if err := writeRows(f, summarySheet, summary); err != nil {
		return err
	}

	if _, err := f.NewSheet(officersSheet); err != nil {
		return fmt.Errorf("failed to create officers sheet: %w", err)
	}
	officers := [][]any{{"Username", "Full name", "Violations", "Amount collected"}}
	for _, o := range stats.ByOfficer {
		officers = append(officers, []any{o.Username, o.FullName, o.ViolationCount, o.AmountCollected})
	}
	if err := writeRows(f, officersSheet, officers); err != nil {
		return err
	}

	if _, err := f.NewSheet(violationsSheet); err != nil {
		return fmt.Errorf("failed to create violations sheet: %w", err)
	}
	rows := [][]any{{"ID", "Car ID", "Reason", "Date/time", "Checkpoint", "Fine", "Officer"}}
	for _, v := range records {
		rows = append(rows, []any{
			v.ID, v.CarID, v.Reason, v.ViolationAt.Format(ViolationTimeLayout),
			v.CheckpointPosition, v.FineAmount, v.OfficerName,
		})
	}
	if err := writeRows(f, violationsSheet, rows); err != nil {
		return err
	}

	_ = f.SetColWidth(summarySheet, "A", "A", 18)
	_ = f.SetColWidth(officersSheet, "A", "B", 20)
	_ = f.SetColWidth(violationsSheet, "C", "C", 40)
	_ = f.SetColWidth(violationsSheet, "D", "E", 18)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
