package service

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collegeportal/portal-api/internal/models"
	appErrors "github.com/collegeportal/portal-api/pkg/errors"
)

type fakeCircularRepo struct {
	created  []*models.Circular
	byID     map[int64]*models.CircularRow
	updated  []*models.Circular
	deleted  []int64
	deleteOK bool
}

func newFakeCircularRepo() *fakeCircularRepo {
	return &fakeCircularRepo{byID: make(map[int64]*models.CircularRow), deleteOK: true}
}

func (f *fakeCircularRepo) Create(ctx context.Context, c *models.Circular) error {
	c.ID = int64(len(f.created) + 1)
	f.created = append(f.created, c)
	return nil
}

func (f *fakeCircularRepo) GetByID(ctx context.Context, id int64) (*models.CircularRow, error) {
	row, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return row, nil
}

func (f *fakeCircularRepo) Update(ctx context.Context, c *models.Circular) (bool, error) {
	f.updated = append(f.updated, c)
	_, ok := f.byID[c.ID]
	return ok, nil
}

func (f *fakeCircularRepo) Delete(ctx context.Context, id int64) (bool, error) {
	f.deleted = append(f.deleted, id)
	return f.deleteOK, nil
}

func (f *fakeCircularRepo) Recent(ctx context.Context, limit int) ([]models.CircularRow, error) {
	return nil, nil
}

type fakeCircularResolver struct {
	deptIDs    map[string]int64
	facultyIDs map[int64]int64
}

func (f *fakeCircularResolver) ResolveEntityIDs(ctx context.Context, filters models.EntityFilters) (models.EntityIDs, error) {
	ids := models.EntityIDs{}
	if filters.DeptCode != "" {
		if deptID, ok := f.deptIDs[filters.DeptCode]; ok {
			ids.DeptID = int64Ptr(deptID)
		}
	}
	if filters.FacultyUserID != 0 {
		if facultyID, ok := f.facultyIDs[filters.FacultyUserID]; ok {
			ids.FacultyID = int64Ptr(facultyID)
		}
	}
	return ids, nil
}

type fakeFileStore struct {
	saved   []string
	removed []string
}

func (f *fakeFileStore) SaveStream(subdir, filename string, r io.Reader) (string, error) {
	io.Copy(io.Discard, r) //nolint:errcheck
	path := subdir + "/" + filename
	f.saved = append(f.saved, path)
	return path, nil
}

func (f *fakeFileStore) Remove(relPath string) error {
	f.removed = append(f.removed, relPath)
	return nil
}

func TestCreateCircularFansOutToAudience(t *testing.T) {
	repo := newFakeCircularRepo()
	resolver := &fakeCircularResolver{facultyIDs: map[int64]int64{100: 6}}
	audience := &fakeAudienceExpander{resolved: []int64{10, 20}}
	notifier := &fakeNotifier{}
	svc := NewCircularService(repo, resolver, audience, notifier, &fakeFileStore{}, nil)

	circular, err := svc.Create(context.Background(), 100, CreateCircularRequest{
		Title:    "Holiday notice",
		Content:  "Campus closed Friday.",
		Audience: models.AudienceAll,
	}, "", nil)
	require.NoError(t, err)
	require.NotNil(t, circular.FacultyID)
	assert.Equal(t, int64(6), *circular.FacultyID)

	require.Len(t, notifier.batches, 1)
	batch := notifier.batches[0]
	assert.Equal(t, []int64{10, 20}, batch.userIDs)
	assert.Equal(t, models.NotificationNewCircular, batch.nType)
	assert.Equal(t, "New circular: Holiday notice", batch.message)
	require.NotNil(t, batch.relatedID)
	assert.Equal(t, circular.ID, *batch.relatedID)
}

func TestCreateCircularOfficePosterHasNoFacultyRow(t *testing.T) {
	repo := newFakeCircularRepo()
	resolver := &fakeCircularResolver{facultyIDs: map[int64]int64{}}
	svc := NewCircularService(repo, resolver, &fakeAudienceExpander{}, &fakeNotifier{}, &fakeFileStore{}, nil)

	circular, err := svc.Create(context.Background(), 1, CreateCircularRequest{
		Title:    "Fee reminder",
		Content:  "Pay by Monday.",
		Audience: models.AudienceStudents,
	}, "", nil)
	require.NoError(t, err)
	assert.Nil(t, circular.FacultyID)
}

func TestCreateCircularSpecificDeptRequiresKnownDept(t *testing.T) {
	resolver := &fakeCircularResolver{deptIDs: map[string]int64{}, facultyIDs: map[int64]int64{100: 6}}
	svc := NewCircularService(newFakeCircularRepo(), resolver, &fakeAudienceExpander{}, &fakeNotifier{}, &fakeFileStore{}, nil)

	_, err := svc.Create(context.Background(), 100, CreateCircularRequest{
		Title:    "Dept meet",
		Content:  "Seminar hall, 3pm.",
		Audience: models.AudienceSpecificDept,
		DeptCode: "XX",
	}, "", nil)
	require.Error(t, err)
	assert.True(t, appErrors.IsNotFound(err))

	_, err = svc.Create(context.Background(), 100, CreateCircularRequest{
		Title:    "Dept meet",
		Content:  "Seminar hall, 3pm.",
		Audience: models.AudienceSpecificDept,
	}, "", nil)
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
}

func TestCreateCircularStoresAttachment(t *testing.T) {
	store := &fakeFileStore{}
	resolver := &fakeCircularResolver{facultyIDs: map[int64]int64{100: 6}}
	svc := NewCircularService(newFakeCircularRepo(), resolver, &fakeAudienceExpander{}, &fakeNotifier{}, store, nil)

	circular, err := svc.Create(context.Background(), 100, CreateCircularRequest{
		Title:    "Exam schedule",
		Content:  "See attachment.",
		Audience: models.AudienceStudents,
	}, "schedule.pdf", bytes.NewReader([]byte("%PDF-")))
	require.NoError(t, err)
	require.NotNil(t, circular.AttachmentPath)
	assert.True(t, strings.HasPrefix(*circular.AttachmentPath, "circulars/"))
	assert.Len(t, store.saved, 1)
}

func TestUpdateCircularNonOwnerForbidden(t *testing.T) {
	repo := newFakeCircularRepo()
	repo.byID[1] = &models.CircularRow{Circular: models.Circular{ID: 1, FacultyID: int64Ptr(6), Title: "Old", Content: "Old"}}
	resolver := &fakeCircularResolver{facultyIDs: map[int64]int64{200: 7}}
	svc := NewCircularService(repo, resolver, &fakeAudienceExpander{}, &fakeNotifier{}, &fakeFileStore{}, nil)

	_, err := svc.Update(context.Background(), 1, 200, models.RoleFaculty, UpdateCircularRequest{Title: "New", Content: "New"})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusForbidden, appErr.Status)
	assert.Empty(t, repo.updated)
}

func TestUpdateCircularAdminMayEditAnything(t *testing.T) {
	repo := newFakeCircularRepo()
	repo.byID[1] = &models.CircularRow{Circular: models.Circular{ID: 1, FacultyID: int64Ptr(6), Title: "Old", Content: "Old"}}
	svc := NewCircularService(repo, &fakeCircularResolver{}, &fakeAudienceExpander{}, &fakeNotifier{}, &fakeFileStore{}, nil)

	_, err := svc.Update(context.Background(), 1, 999, models.RoleAdmin, UpdateCircularRequest{Title: "New", Content: "New"})
	require.NoError(t, err)
	require.Len(t, repo.updated, 1)
	assert.Equal(t, "New", repo.updated[0].Title)
}

func TestDeleteCircularRemovesAttachment(t *testing.T) {
	attachment := "circulars/schedule.pdf"
	repo := newFakeCircularRepo()
	repo.byID[1] = &models.CircularRow{Circular: models.Circular{ID: 1, FacultyID: int64Ptr(6), AttachmentPath: &attachment}}
	store := &fakeFileStore{}
	svc := NewCircularService(repo, &fakeCircularResolver{}, &fakeAudienceExpander{}, &fakeNotifier{}, store, nil)

	err := svc.Delete(context.Background(), 1, 999, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, repo.deleted)
	assert.Equal(t, []string{attachment}, store.removed)
}

func TestGetCircularNotFound(t *testing.T) {
	svc := NewCircularService(newFakeCircularRepo(), &fakeCircularResolver{}, &fakeAudienceExpander{}, &fakeNotifier{}, &fakeFileStore{}, nil)

	_, err := svc.Get(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, appErrors.IsNotFound(err))
}
