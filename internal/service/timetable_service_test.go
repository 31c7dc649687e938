package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collegeportal/portal-api/internal/models"
)

type fakeTimetableResolver struct {
	deptID     int64
	facultyIDs map[int64]int64

	ids models.EntityIDs

	subjectIDs    map[string]int64
	offeringID    int64
	assignmentIDs int64
}

func (f *fakeTimetableResolver) ResolveEntityIDs(ctx context.Context, filters models.EntityFilters) (models.EntityIDs, error) {
	if filters.FacultyUserID != 0 {
		ids := models.EntityIDs{}
		if facultyID, ok := f.facultyIDs[filters.FacultyUserID]; ok {
			ids.FacultyID = int64Ptr(facultyID)
		}
		return ids, nil
	}
	return f.ids, nil
}

func (f *fakeTimetableResolver) GetOrCreateDepartment(ctx context.Context, code, name string) (int64, error) {
	return f.deptID, nil
}

func (f *fakeTimetableResolver) GetOrCreateSubject(ctx context.Context, code, name string) (int64, error) {
	if id, ok := f.subjectIDs[code]; ok {
		return id, nil
	}
	return 1, nil
}

func (f *fakeTimetableResolver) GetOrCreateOffering(ctx context.Context, subjectID, deptID int64, semester int) (int64, error) {
	return f.offeringID, nil
}

func (f *fakeTimetableResolver) GetOrCreateAssignment(ctx context.Context, offeringID, facultyID int64, section string) (int64, error) {
	f.assignmentIDs++
	return f.assignmentIDs, nil
}

type fakeTimetableRepo struct {
	slots []models.TimetableSlot
	week  []models.TimetableRow
}

func (f *fakeTimetableRepo) UpsertSlot(ctx context.Context, slot models.TimetableSlot) error {
	f.slots = append(f.slots, slot)
	return nil
}

func (f *fakeTimetableRepo) WeekForClass(ctx context.Context, deptID int64, semester int, section string) ([]models.TimetableRow, error) {
	return f.week, nil
}

type fakeAudienceExpander struct {
	resolved   []int64
	descriptor models.AudienceDescriptor
	circulars  []models.CircularRow
}

func (f *fakeAudienceExpander) Resolve(ctx context.Context, d models.AudienceDescriptor) ([]int64, error) {
	f.descriptor = d
	return f.resolved, nil
}

func (f *fakeAudienceExpander) CircularsForUser(ctx context.Context, userID int64, role models.UserRole) ([]models.CircularRow, error) {
	return f.circulars, nil
}

func validTimetableRequest() SaveTimetableRequest {
	return SaveTimetableRequest{
		DeptCode: "CS",
		Semester: 3,
		Section:  "A",
		Entries: []TimetableEntry{
			{DayOfWeek: "Monday", PeriodNumber: 1, SubjectCode: "CS101", FacultyUserID: 100},
			{DayOfWeek: "Tuesday", PeriodNumber: 2, SubjectCode: "CS102", FacultyUserID: 100},
		},
	}
}

func TestSaveTimetableNotifiesCohort(t *testing.T) {
	resolver := &fakeTimetableResolver{deptID: 4, facultyIDs: map[int64]int64{100: 6}, offeringID: 20}
	repo := &fakeTimetableRepo{}
	audience := &fakeAudienceExpander{resolved: []int64{10, 11}}
	notifier := &fakeNotifier{}
	svc := NewTimetableService(resolver, repo, audience, notifier, nil)

	result, err := svc.Save(context.Background(), validTimetableRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Zero(t, result.Skipped)
	assert.Len(t, repo.slots, 2)

	assert.Equal(t, models.AudienceStudents, audience.descriptor.Audience)
	require.NotNil(t, audience.descriptor.DeptID)
	assert.Equal(t, int64(4), *audience.descriptor.DeptID)
	require.NotNil(t, audience.descriptor.Semester)
	assert.Equal(t, 3, *audience.descriptor.Semester)

	require.Len(t, notifier.batches, 1)
	assert.Equal(t, models.NotificationTimetableUpdate, notifier.batches[0].nType)
	assert.Equal(t, "Timetable updated for CS semester 3", notifier.batches[0].message)
}

func TestSaveTimetableSkipsUnknownFacultyAndBadWeekday(t *testing.T) {
	resolver := &fakeTimetableResolver{deptID: 4, facultyIDs: map[int64]int64{100: 6}, offeringID: 20}
	repo := &fakeTimetableRepo{}
	svc := NewTimetableService(resolver, repo, &fakeAudienceExpander{}, &fakeNotifier{}, nil)

	req := validTimetableRequest()
	req.Entries = append(req.Entries,
		TimetableEntry{DayOfWeek: "Funday", PeriodNumber: 3, SubjectCode: "CS103", FacultyUserID: 100},
		TimetableEntry{DayOfWeek: "Wednesday", PeriodNumber: 4, SubjectCode: "CS104", FacultyUserID: 999},
	)

	result, err := svc.Save(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, repo.slots, 2)
}

func TestSaveTimetableNothingLandedSkipsNotification(t *testing.T) {
	resolver := &fakeTimetableResolver{deptID: 4, facultyIDs: map[int64]int64{}}
	notifier := &fakeNotifier{}
	svc := NewTimetableService(resolver, &fakeTimetableRepo{}, &fakeAudienceExpander{}, notifier, nil)

	result, err := svc.Save(context.Background(), validTimetableRequest())
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
	assert.Empty(t, notifier.batches)
}

func TestWeekForClassUnknownDeptReturnsEmpty(t *testing.T) {
	resolver := &fakeTimetableResolver{ids: models.EntityIDs{}}
	svc := NewTimetableService(resolver, &fakeTimetableRepo{}, &fakeAudienceExpander{}, &fakeNotifier{}, nil)

	rows, err := svc.WeekForClass(context.Background(), "XX", 3, "A")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
