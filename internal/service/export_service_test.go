package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collegeportal/portal-api/internal/models"
)

type fakeSummarizer struct {
	rows []models.SubjectAttendanceSummary
}

func (f *fakeSummarizer) StudentOverall(ctx context.Context, studentUserID int64) ([]models.SubjectAttendanceSummary, error) {
	return f.rows, nil
}

type fakeSheetProvider struct {
	rows []models.StudentMarksRow
}

func (f *fakeSheetProvider) ClassSheet(ctx context.Context, deptCode, subjectCode string, semester int, section string) ([]models.StudentMarksRow, error) {
	return f.rows, nil
}

func TestAttendanceSummaryCSV(t *testing.T) {
	summarizer := &fakeSummarizer{rows: []models.SubjectAttendanceSummary{
		{SubjectCode: "CS101", SubjectName: "Data Structures", Semester: 3, TotalSessions: 8, PresentSessions: 6, Percentage: 75},
	}}
	svc := NewExportService(summarizer, &fakeSheetProvider{}, nil)

	file, err := svc.AttendanceSummary(context.Background(), 100, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "attendance_summary.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)

	body := string(file.Data)
	assert.Contains(t, body, "Subject Code,Subject Name,Semester,Total Sessions,Present,Percentage")
	assert.Contains(t, body, "CS101,Data Structures,3,8,6,75.00")
}

func TestAttendanceSummaryPDF(t *testing.T) {
	svc := NewExportService(&fakeSummarizer{}, &fakeSheetProvider{}, nil)

	file, err := svc.AttendanceSummary(context.Background(), 100, FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasPrefix(string(file.Data), "%PDF"))
}

func TestAttendanceSummaryRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(&fakeSummarizer{}, &fakeSheetProvider{}, nil)

	_, err := svc.AttendanceSummary(context.Background(), 100, ExportFormat("xlsx"))
	require.Error(t, err)
}

func TestMarksSheetColumnsAreStable(t *testing.T) {
	provider := &fakeSheetProvider{rows: []models.StudentMarksRow{
		{StudentID: 1, Name: "Asha", USN: "1RV21CS001", Scores: map[string]float64{"IA2": 70, "IA1": 88}},
		{StudentID: 2, Name: "Bilal", USN: "1RV21CS002", Scores: map[string]float64{}},
	}}
	svc := NewExportService(&fakeSummarizer{}, provider, nil)

	file, err := svc.MarksSheet(context.Background(), "CS", "CS101", 3, "A", FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "marks_CS_CS101.csv", file.Filename)

	lines := strings.Split(strings.TrimSpace(string(file.Data)), "\n")
	require.Len(t, lines, 3)
	// Assessment columns sort by name regardless of map order.
	assert.Equal(t, "USN,Name,IA1,IA2", strings.TrimSpace(lines[0]))
	assert.Equal(t, "1RV21CS001,Asha,88.0,70.0", strings.TrimSpace(lines[1]))
	assert.Equal(t, "1RV21CS002,Bilal,,", strings.TrimSpace(lines[2]))
}
