package report

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"health-importer/internal/observability/metrics"
	streamingapp "health-importer/internal/streaming/application"
)

// ErrUnsupportedFormat is returned for report paths that are neither .pdf nor .xlsx.
var ErrUnsupportedFormat = errors.New("report: unsupported format")

type line struct {
	label string
	value any
}

func summaryLines(s streamingapp.Summary) []line {
	return []line{
		{"File", s.Path},
		{"Fingerprint", s.FileHash},
		{"Mode", s.Mode.String()},
		{"Resumed", s.Resumed},
		{"Already imported", s.AlreadyImported},
		{"Duration (s)", s.Duration.Seconds()},
		{"Records processed", s.Processed.Records},
		{"Workouts processed", s.Processed.Workouts},
		{"Activity summaries processed", s.Processed.Activities},
		{"Written", s.Stats.Written},
		{"Duplicates", s.Stats.Duplicates},
		{"Skipped (incremental)", s.Stats.Skipped},
		{"Write errors", s.Stats.WriteErrors},
		{"Parse errors", s.Stats.ParseErrors},
		{"Rejected", s.Stats.Rejected},
		{"Unknown types", s.Stats.UnknownTypes},
		{"Validation errors", s.Stats.ValidationErrors},
		{"Validation warnings", s.Stats.ValidationWarnings},
	}
}

func sortedCategories(counts map[string]int) []string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildRunPDF renders a one-page PDF for an import run.
func BuildRunPDF(s streamingapp.Summary, generated time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Health Import Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generated.Format(time.RFC3339)))
	pdf.Ln(8)
	for _, l := range summaryLines(s) {
		pdf.Cell(0, 6, fmt.Sprintf("%s: %v", l.label, l.value))
		pdf.Ln(5)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 6, "Category", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Accepted", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, name := range sortedCategories(s.Stats.Categories) {
		pdf.CellFormat(60, 6, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%d", s.Stats.Categories[name]), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildRunXLSX renders the run summary, category counts and preview sample.
func BuildRunXLSX(s streamingapp.Summary, generated time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	categorySheet := "categories"
	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(categorySheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Health Import Report")
	_ = f.SetCellValue(summarySheet, "A2", "Generated")
	_ = f.SetCellValue(summarySheet, "B2", generated.Format(time.RFC3339))
	for i, l := range summaryLines(s) {
		row := i + 4
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), l.label)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), l.value)
	}

	_ = f.SetCellValue(categorySheet, "A1", "Category")
	_ = f.SetCellValue(categorySheet, "B1", "Accepted")
	for i, name := range sortedCategories(s.Stats.Categories) {
		row := i + 2
		_ = f.SetCellValue(categorySheet, fmt.Sprintf("A%d", row), name)
		_ = f.SetCellValue(categorySheet, fmt.Sprintf("B%d", row), s.Stats.Categories[name])
	}

	if len(s.Preview) > 0 {
		previewSheet := "preview"
		if _, err := f.NewSheet(previewSheet); err != nil {
			return nil, err
		}
		_ = f.SetCellValue(previewSheet, "A1", "Time")
		_ = f.SetCellValue(previewSheet, "B1", "Measurement")
		_ = f.SetCellValue(previewSheet, "C1", "Type")
		_ = f.SetCellValue(previewSheet, "D1", "Fields")
		for i, p := range s.Preview {
			row := i + 2
			_ = f.SetCellValue(previewSheet, fmt.Sprintf("A%d", row), p.Time.Format(time.RFC3339))
			_ = f.SetCellValue(previewSheet, fmt.Sprintf("B%d", row), p.Measurement)
			_ = f.SetCellValue(previewSheet, fmt.Sprintf("C%d", row), p.Type)
			_ = f.SetCellValue(previewSheet, fmt.Sprintf("D%d", row), fmt.Sprint(p.Fields))
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write renders s in the format implied by the extension of path.
func Write(path string, s streamingapp.Summary, generated time.Time) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	var (
		data []byte
		err  error
	)
	switch format {
	case "pdf":
		data, err = BuildRunPDF(s, generated)
	case "xlsx":
		data, err = BuildRunXLSX(s, generated)
	default:
		metrics.IncReportExport(format, metrics.ResultError)
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err == nil {
		err = os.WriteFile(path, data, 0o644)
	}
	if err != nil {
		metrics.IncReportExport(format, metrics.ResultError)
		return fmt.Errorf("report: %w", err)
	}
	metrics.IncReportExport(format, metrics.ResultSuccess)
	return nil
}
