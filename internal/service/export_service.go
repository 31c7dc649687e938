package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/collegeportal/portal-api/internal/models"
	appErrors "github.com/collegeportal/portal-api/pkg/errors"
	"github.com/collegeportal/portal-api/pkg/export"
)

type attendanceSummarizer interface {
	StudentOverall(ctx context.Context, studentUserID int64) ([]models.SubjectAttendanceSummary, error)
}

type sheetProvider interface {
	ClassSheet(ctx context.Context, deptCode, subjectCode string, semester int, section string) ([]models.StudentMarksRow, error)
}

// ExportFormat selects the rendered file type.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

// ExportFile is a rendered document ready to stream to the client.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders attendance summaries and marks sheets as CSV or PDF
// downloads.
type ExportService struct {
	attendance attendanceSummarizer
	marks      sheetProvider
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	logger     *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(attendance attendanceSummarizer, marks sheetProvider, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		attendance: attendance,
		marks:      marks,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		logger:     logger,
	}
}

// AttendanceSummary renders a student's per-subject attendance as a download.
func (s *ExportService) AttendanceSummary(ctx context.Context, studentUserID int64, format ExportFormat) (*ExportFile, error) {
	rows, err := s.attendance.StudentOverall(ctx, studentUserID)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"Subject Code", "Subject Name", "Semester", "Total Sessions", "Present", "Percentage"},
	}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Subject Code":   row.SubjectCode,
			"Subject Name":   row.SubjectName,
			"Semester":       fmt.Sprintf("%d", row.Semester),
			"Total Sessions": fmt.Sprintf("%d", row.TotalSessions),
			"Present":        fmt.Sprintf("%d", row.PresentSessions),
			"Percentage":     fmt.Sprintf("%.2f", row.Percentage),
		})
	}
	return s.render(dataset, "Attendance Summary", "attendance_summary", format)
}

// MarksSheet renders a class's grading sheet as a download. Assessment
// columns are discovered from the data and sorted by name so the layout is
// stable across exports.
func (s *ExportService) MarksSheet(ctx context.Context, deptCode, subjectCode string, semester int, section string, format ExportFormat) (*ExportFile, error) {
	rows, err := s.marks.ClassSheet(ctx, deptCode, subjectCode, semester, section)
	if err != nil {
		return nil, err
	}

	assessmentSet := make(map[string]struct{})
	for _, row := range rows {
		for name := range row.Scores {
			assessmentSet[name] = struct{}{}
		}
	}
	assessments := make([]string, 0, len(assessmentSet))
	for name := range assessmentSet {
		assessments = append(assessments, name)
	}
	sort.Strings(assessments)

	dataset := export.Dataset{Headers: append([]string{"USN", "Name"}, assessments...)}
	for _, row := range rows {
		record := map[string]string{"USN": row.USN, "Name": row.Name}
		for _, name := range assessments {
			if score, ok := row.Scores[name]; ok {
				record[name] = fmt.Sprintf("%.1f", score)
			} else {
				record[name] = ""
			}
		}
		dataset.Rows = append(dataset.Rows, record)
	}

	title := fmt.Sprintf("Marks %s %s Sem %d Sec %s", deptCode, subjectCode, semester, section)
	return s.render(dataset, title, fmt.Sprintf("marks_%s_%s", deptCode, subjectCode), format)
}

func (s *ExportService) render(dataset export.Dataset, title, basename string, format ExportFormat) (*ExportFile, error) {
	switch format {
	case FormatCSV:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportFile{Filename: basename + ".csv", ContentType: "text/csv", Data: data}, nil
	case FormatPDF:
		data, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportFile{Filename: basename + ".pdf", ContentType: "application/pdf", Data: data}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}
