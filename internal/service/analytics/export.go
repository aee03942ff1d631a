package analytics

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	analyticsmodel "github.com/zhouzirui/elera-assistant/console/internal/model/analytics"
)

const (
	overviewSheet = "Overview"
	maxSheetName  = 31
)

// ExportXLSX writes the loaded dashboard as a workbook: an overview sheet
// followed by one sheet per metric.
func (s *Service) ExportXLSX(w io.Writer) error {
	snap := s.Snapshot()
	if snap.Dashboard == nil {
		return ErrNoData
	}
	return writeWorkbook(w, snap.Range, snap.Dashboard)
}

func writeWorkbook(w io.Writer, rng Range, dash *analyticsmodel.Dashboard) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", overviewSheet); err != nil {
		return fmt.Errorf("rename overview sheet: %w", err)
	}

	rows := [][]any{
		{"From", rng.From},
		{"To", rng.To},
		{"Average rating", dash.Overall.AvgRating},
		{"Cultural score", dash.Overall.CulturalScore},
		{"Feedback count", dash.Overall.FeedbackCount},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(overviewSheet, cell, &row); err != nil {
			return fmt.Errorf("write overview: %w", err)
		}
	}

	metrics := make([]string, 0, len(dash.TimeSeries))
	for metric := range dash.TimeSeries {
		metrics = append(metrics, metric)
	}
	sort.Strings(metrics)

	for _, metric := range metrics {
		sheet := sheetName(metric)
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %q: %w", sheet, err)
		}
		header := []any{"Date", "Value", "Text"}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return fmt.Errorf("write header %q: %w", sheet, err)
		}

		points := append([]analyticsmodel.Point(nil), dash.TimeSeries[metric]...)
		sort.SliceStable(points, func(i, j int) bool { return points[i].Date < points[j].Date })
		for i, p := range points {
			text := ""
			if p.TextValue != nil {
				text = *p.TextValue
			}
			row := []any{p.Date, p.Value, text}
			cell, _ := excelize.CoordinatesToCellName(1, i+2)
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				return fmt.Errorf("write %q row %d: %w", sheet, i, err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// sheetName strips characters Excel forbids and enforces the length limit.
func sheetName(metric string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, metric)
	if name == "" || strings.EqualFold(name, overviewSheet) {
		name = "metric_" + name
	}
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	return name
}
