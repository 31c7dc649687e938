package service

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collegeportal/portal-api/internal/models"
	appErrors "github.com/collegeportal/portal-api/pkg/errors"
)

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }

type fakeAttendanceResolver struct {
	ids        models.EntityIDs
	resolveErr error

	offeringID    int64
	offeringErr   error
	assignmentID  int64
	assignmentErr error

	sessionID   int64
	sessionDate time.Time
}

func (f *fakeAttendanceResolver) ResolveEntityIDs(ctx context.Context, filters models.EntityFilters) (models.EntityIDs, error) {
	return f.ids, f.resolveErr
}

func (f *fakeAttendanceResolver) FindOffering(ctx context.Context, subjectID, deptID int64, semester int) (int64, error) {
	return f.offeringID, f.offeringErr
}

func (f *fakeAttendanceResolver) FindAssignment(ctx context.Context, offeringID, facultyID int64, section string) (int64, error) {
	return f.assignmentID, f.assignmentErr
}

func (f *fakeAttendanceResolver) ResolveOrCreateClassSession(ctx context.Context, assignmentID int64, date time.Time, periodNumber int) (int64, error) {
	f.sessionDate = date
	return f.sessionID, nil
}

type fakeAttendanceRepo struct {
	submitted      []models.AttendanceEntry
	processed      int
	submitErr      error
	history        []models.SessionHistoryRow
	updateOK       bool
	updateStudent  int64
	overall        []models.SubjectAttendanceSummary
	overallQueries int
}

func (f *fakeAttendanceRepo) SubmitForSession(ctx context.Context, sessionID int64, entries []models.AttendanceEntry) (int, error) {
	f.submitted = entries
	return f.processed, f.submitErr
}

func (f *fakeAttendanceRepo) HistoryForClass(ctx context.Context, deptID int64, semester int, section string, subjectID *int64, filter models.ClassHistoryFilter) ([]models.SessionHistoryRow, error) {
	return f.history, nil
}

func (f *fakeAttendanceRepo) DetailsForSession(ctx context.Context, sessionID int64) ([]models.SessionDetailRow, error) {
	return nil, nil
}

func (f *fakeAttendanceRepo) UpdateStatus(ctx context.Context, attendanceID int64, status models.AttendanceStatus) (bool, int64, error) {
	return f.updateOK, f.updateStudent, nil
}

func (f *fakeAttendanceRepo) StudentOverall(ctx context.Context, studentID int64) ([]models.SubjectAttendanceSummary, error) {
	f.overallQueries++
	return f.overall, nil
}

type fakeSummaryCache struct {
	data    map[string][]models.SubjectAttendanceSummary
	sets    map[string][]models.SubjectAttendanceSummary
	deleted []string
}

func newFakeSummaryCache() *fakeSummaryCache {
	return &fakeSummaryCache{
		data: make(map[string][]models.SubjectAttendanceSummary),
		sets: make(map[string][]models.SubjectAttendanceSummary),
	}
}

func (f *fakeSummaryCache) Get(ctx context.Context, key string, dest interface{}) error {
	v, ok := f.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*dest.(*[]models.SubjectAttendanceSummary) = v
	return nil
}

func (f *fakeSummaryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.sets[key] = value.([]models.SubjectAttendanceSummary)
	return nil
}

func (f *fakeSummaryCache) Delete(ctx context.Context, keys ...string) {
	f.deleted = append(f.deleted, keys...)
}

func validMarkRequest() MarkAttendanceRequest {
	return MarkAttendanceRequest{
		DeptCode:     "CS",
		SubjectCode:  "CS101",
		Semester:     3,
		Section:      "A",
		Date:         "2024-03-11",
		PeriodNumber: 2,
		Entries: []models.AttendanceEntry{
			{StudentID: 1, Status: models.AttendanceStatusPresent},
			{StudentID: 2, Status: models.AttendanceStatusAbsent},
		},
	}
}

func resolvedClassIDs() models.EntityIDs {
	return models.EntityIDs{
		DeptID:    int64Ptr(4),
		SubjectID: int64Ptr(9),
		FacultyID: int64Ptr(6),
	}
}

func TestMarkAttendanceSuccessInvalidatesSummaries(t *testing.T) {
	resolver := &fakeAttendanceResolver{ids: resolvedClassIDs(), offeringID: 20, assignmentID: 30, sessionID: 40}
	repo := &fakeAttendanceRepo{processed: 2}
	cache := newFakeSummaryCache()
	svc := NewAttendanceService(resolver, repo, cache, time.Minute, nil)

	result, err := svc.Mark(context.Background(), 100, validMarkRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(40), result.SessionID)
	assert.Equal(t, 2, result.Processed)
	assert.Zero(t, result.Skipped)
	assert.Len(t, repo.submitted, 2)
	assert.ElementsMatch(t, []string{"attendance:summary:1", "attendance:summary:2"}, cache.deleted)
}

func TestMarkAttendanceRejectsBadDate(t *testing.T) {
	svc := NewAttendanceService(&fakeAttendanceResolver{}, &fakeAttendanceRepo{}, nil, time.Minute, nil)

	req := validMarkRequest()
	req.Date = "11/03/2024"
	_, err := svc.Mark(context.Background(), 100, req)
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
}

func TestMarkAttendanceUnknownOffering(t *testing.T) {
	resolver := &fakeAttendanceResolver{ids: resolvedClassIDs(), offeringErr: sql.ErrNoRows}
	svc := NewAttendanceService(resolver, &fakeAttendanceRepo{}, nil, time.Minute, nil)

	_, err := svc.Mark(context.Background(), 100, validMarkRequest())
	require.Error(t, err)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestMarkAttendanceUnassignedFacultyForbidden(t *testing.T) {
	resolver := &fakeAttendanceResolver{ids: resolvedClassIDs(), offeringID: 20, assignmentErr: sql.ErrNoRows}
	svc := NewAttendanceService(resolver, &fakeAttendanceRepo{}, nil, time.Minute, nil)

	_, err := svc.Mark(context.Background(), 100, validMarkRequest())
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusForbidden, appErr.Status)
}

func TestMarkAttendanceReportsSkippedEntries(t *testing.T) {
	resolver := &fakeAttendanceResolver{ids: resolvedClassIDs(), offeringID: 20, assignmentID: 30, sessionID: 40}
	repo := &fakeAttendanceRepo{processed: 1}
	svc := NewAttendanceService(resolver, repo, nil, time.Minute, nil)

	req := validMarkRequest()
	req.Entries = append(req.Entries, models.AttendanceEntry{StudentID: 0, Status: models.AttendanceStatusPresent})
	req.Entries = req.Entries[1:]

	result, err := svc.Mark(context.Background(), 100, req)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Skipped)
}

func TestHistoryUnknownDeptReturnsEmpty(t *testing.T) {
	resolver := &fakeAttendanceResolver{ids: models.EntityIDs{}}
	svc := NewAttendanceService(resolver, &fakeAttendanceRepo{}, nil, time.Minute, nil)

	rows, err := svc.History(context.Background(), models.ClassHistoryFilter{DeptCode: "XX", Semester: 3, Section: "A"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestUpdateStatusNotFound(t *testing.T) {
	svc := NewAttendanceService(&fakeAttendanceResolver{}, &fakeAttendanceRepo{updateOK: false}, nil, time.Minute, nil)

	err := svc.UpdateStatus(context.Background(), 99, UpdateAttendanceRequest{Status: models.AttendanceStatusAbsent})
	require.Error(t, err)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestUpdateStatusInvalidatesStudentSummary(t *testing.T) {
	cache := newFakeSummaryCache()
	svc := NewAttendanceService(&fakeAttendanceResolver{}, &fakeAttendanceRepo{updateOK: true, updateStudent: 17}, cache, time.Minute, nil)

	err := svc.UpdateStatus(context.Background(), 44, UpdateAttendanceRequest{Status: models.AttendanceStatusPresent})
	require.NoError(t, err)
	assert.Equal(t, []string{"attendance:summary:17"}, cache.deleted)
}

func TestStudentOverallServesFromCache(t *testing.T) {
	cached := []models.SubjectAttendanceSummary{{SubjectCode: "CS101", Percentage: 75}}
	cache := newFakeSummaryCache()
	cache.data["attendance:summary:17"] = cached

	resolver := &fakeAttendanceResolver{ids: models.EntityIDs{StudentID: int64Ptr(17)}}
	repo := &fakeAttendanceRepo{}
	svc := NewAttendanceService(resolver, repo, cache, time.Minute, nil)

	rows, err := svc.StudentOverall(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, cached, rows)
	assert.Zero(t, repo.overallQueries)
}

func TestStudentOverallMissFillsCache(t *testing.T) {
	cache := newFakeSummaryCache()
	resolver := &fakeAttendanceResolver{ids: models.EntityIDs{StudentID: int64Ptr(17)}}
	repo := &fakeAttendanceRepo{overall: []models.SubjectAttendanceSummary{{SubjectCode: "CS101"}}}
	svc := NewAttendanceService(resolver, repo, cache, time.Minute, nil)

	rows, err := svc.StudentOverall(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, repo.overallQueries)
	assert.Contains(t, cache.sets, "attendance:summary:17")
}
