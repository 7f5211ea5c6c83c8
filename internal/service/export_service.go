package service

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/grademonitor-api/internal/projection"
	appErrors "github.com/noah-isme/grademonitor-api/pkg/errors"
	"github.com/noah-isme/grademonitor-api/pkg/export"
	"github.com/noah-isme/grademonitor-api/pkg/i18n"
)

// Supported export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type sessionSnapshotter interface {
	Snapshot(id string) (projection.View, *i18n.Bundle, error)
}

type csvRenderer interface {
	Render(data export.Table) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Table) ([]byte, error)
}

// ExportResult is a rendered download.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders the table of an open session as a file.
type ExportService struct {
	sessions sessionSnapshotter
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
}

// NewExportService wires renderers; nil renderers fall back to the defaults.
func NewExportService(sessions sessionSnapshotter, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{sessions: sessions, csv: csv, pdf: pdf, logger: logger}
}

// Export renders the session view in format.
func (s *ExportService) Export(id, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	view, bundle, err := s.sessions.Snapshot(id)
	if err != nil {
		return nil, err
	}
	table := BuildExportTable(view, bundle)

	var (
		data        []byte
		contentType string
	)
	switch format {
	case ExportFormatPDF:
		data, err = s.pdf.Render(table)
		contentType = "application/pdf"
	default:
		data, err = s.csv.Render(table)
		contentType = "text/csv"
	}
	if err != nil {
		s.logger.Error("render monitor export", zap.String("session_id", id), zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportResult{
		Filename:    fmt.Sprintf("grade-monitor-%s.%s", shortID(id), format),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// BuildExportTable lays out a view as rows and summary fields. The class
// average column is present only while the average is shown.
func BuildExportTable(view projection.View, l projection.Localizer) export.Table {
	headers := []string{l.Message("th_name"), l.Message("th_optional"), l.Message("th_weight")}
	if view.ShowAverage {
		headers = append(headers, l.Message("th_average"))
	}
	headers = append(headers, l.Message("th_own_result"), l.Message("th_estimation"), l.Message("th_include"))

	rows := make([][]string, 0, len(view.Rows))
	for _, r := range view.Rows {
		row := []string{r.Name, mark(r.Optional), fmt.Sprintf("%d%%", r.Weight)}
		if view.ShowAverage {
			row = append(row, r.Average)
		}
		row = append(row, r.Result, r.Estimation, mark(r.Checked))
		rows = append(rows, row)
	}

	summary := []export.Field{
		{Label: l.Message("current_grade"), Value: view.Current},
	}
	if view.ShowAverage {
		summary = append(summary, export.Field{Label: l.Message("class_average"), Value: view.Average})
	}
	summary = append(summary,
		export.Field{Label: l.Message("self_estimation"), Value: view.SelfEstimation},
		export.Field{Label: l.Message("best_possible"), Value: view.BestPossible},
		export.Field{Label: view.GradeCompletion + "%", Value: l.Message("grade_completion")},
		export.Field{Label: l.Message("goal"), Value: view.Goal.Message},
	)
	if view.SchemeNotice != nil {
		summary = append(summary, export.Field{Label: view.SchemeNotice.Message, Value: view.SchemeNotice.Date})
	}

	return export.Table{
		Title:   l.Message("widget_name"),
		Headers: headers,
		Rows:    rows,
		Summary: summary,
	}
}

func mark(v bool) string {
	if v {
		return "x"
	}
	return ""
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
