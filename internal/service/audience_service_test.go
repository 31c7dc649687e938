package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collegeportal/portal-api/internal/models"
)

type fakeAudienceRepo struct {
	students        []int64
	faculty         []int64
	deptStudents    []int64
	deptFaculty     []int64
	offeringUsers   []int64
	mappedUsers     []int64
	circulars       []models.CircularRow
	circularRole    models.UserRole
	circularDeptID  *int64
	deptSemesterArg *int
}

func (f *fakeAudienceRepo) AllStudentUserIDs(ctx context.Context) ([]int64, error) {
	return f.students, nil
}

func (f *fakeAudienceRepo) AllFacultyUserIDs(ctx context.Context) ([]int64, error) {
	return f.faculty, nil
}

func (f *fakeAudienceRepo) StudentUserIDsByDept(ctx context.Context, deptID int64, semester *int) ([]int64, error) {
	f.deptSemesterArg = semester
	return f.deptStudents, nil
}

func (f *fakeAudienceRepo) FacultyUserIDsByDept(ctx context.Context, deptID int64) ([]int64, error) {
	return f.deptFaculty, nil
}

func (f *fakeAudienceRepo) StudentUserIDsByOffering(ctx context.Context, offeringID int64) ([]int64, error) {
	return f.offeringUsers, nil
}

func (f *fakeAudienceRepo) UserIDsForStudentIDs(ctx context.Context, studentIDs []int64) ([]int64, error) {
	return f.mappedUsers, nil
}

func (f *fakeAudienceRepo) VisibleCirculars(ctx context.Context, role models.UserRole, deptID *int64) ([]models.CircularRow, error) {
	f.circularRole = role
	f.circularDeptID = deptID
	return f.circulars, nil
}

type fakeAudienceResolver struct {
	ids models.EntityIDs
}

func (f *fakeAudienceResolver) ResolveEntityIDs(ctx context.Context, filters models.EntityFilters) (models.EntityIDs, error) {
	return f.ids, nil
}

func TestResolveAllDeduplicatesAcrossGroups(t *testing.T) {
	// User 30 holds both a student and a faculty row; they must be
	// notified once.
	repo := &fakeAudienceRepo{students: []int64{10, 20, 30}, faculty: []int64{30, 40}}
	svc := NewAudienceService(repo, &fakeAudienceResolver{}, nil)

	ids, err := svc.Resolve(context.Background(), models.AudienceDescriptor{Audience: models.AudienceAll})
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30, 40}, ids)
}

func TestResolveStudentsScopedToCohort(t *testing.T) {
	repo := &fakeAudienceRepo{deptStudents: []int64{10, 11}}
	svc := NewAudienceService(repo, &fakeAudienceResolver{}, nil)

	semester := 3
	ids, err := svc.Resolve(context.Background(), models.AudienceDescriptor{
		Audience: models.AudienceStudents,
		DeptID:   int64Ptr(4),
		Semester: &semester,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, ids)
	require.NotNil(t, repo.deptSemesterArg)
	assert.Equal(t, 3, *repo.deptSemesterArg)
}

func TestResolveSpecificDeptRequiresDepartment(t *testing.T) {
	svc := NewAudienceService(&fakeAudienceRepo{}, &fakeAudienceResolver{}, nil)

	_, err := svc.Resolve(context.Background(), models.AudienceDescriptor{Audience: models.AudienceSpecificDept})
	require.Error(t, err)
}

func TestResolveSpecificDeptCombinesStudentsAndFaculty(t *testing.T) {
	repo := &fakeAudienceRepo{deptStudents: []int64{10}, deptFaculty: []int64{50}}
	svc := NewAudienceService(repo, &fakeAudienceResolver{}, nil)

	ids, err := svc.Resolve(context.Background(), models.AudienceDescriptor{
		Audience: models.AudienceSpecificDept,
		DeptID:   int64Ptr(4),
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 50}, ids)
}

func TestResolveRejectsUnknownAudience(t *testing.T) {
	svc := NewAudienceService(&fakeAudienceRepo{}, &fakeAudienceResolver{}, nil)

	_, err := svc.Resolve(context.Background(), models.AudienceDescriptor{Audience: "everyone"})
	require.Error(t, err)
}

func TestCircularsForUserPassesStudentDept(t *testing.T) {
	repo := &fakeAudienceRepo{circulars: []models.CircularRow{{Circular: models.Circular{Title: "Holiday notice"}}}}
	resolver := &fakeAudienceResolver{ids: models.EntityIDs{StudentDeptID: int64Ptr(4)}}
	svc := NewAudienceService(repo, resolver, nil)

	rows, err := svc.CircularsForUser(context.Background(), 100, models.RoleStudent)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.RoleStudent, repo.circularRole)
	require.NotNil(t, repo.circularDeptID)
	assert.Equal(t, int64(4), *repo.circularDeptID)
}

func TestCircularsForAdminSkipsDeptLookup(t *testing.T) {
	repo := &fakeAudienceRepo{}
	svc := NewAudienceService(repo, &fakeAudienceResolver{}, nil)

	_, err := svc.CircularsForUser(context.Background(), 1, models.RoleAdmin)
	require.NoError(t, err)
	assert.Nil(t, repo.circularDeptID)
}

func TestDedupePreservesFirstSeenOrder(t *testing.T) {
	out := dedupe([]int64{3, 1, 3}, []int64{2, 1})
	assert.Equal(t, []int64{3, 1, 2}, out)
}
