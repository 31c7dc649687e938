package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collegeportal/portal-api/internal/models"
)

func TestNotificationInsertFillsGeneratedFields(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	created := time.Date(2024, 3, 2, 10, 30, 0, 0, time.UTC)
	relatedID := int64(12)
	mock.ExpectQuery(`INSERT INTO notifications`).
		WithArgs(int64(7), models.NotificationNewCircular, "New circular: Holiday notice", &relatedID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(55, created))

	n := &models.Notification{
		UserID:    7,
		Type:      models.NotificationNewCircular,
		Message:   "New circular: Holiday notice",
		RelatedID: &relatedID,
	}
	require.NoError(t, repo.Insert(context.Background(), n))
	assert.Equal(t, int64(55), n.ID)
	assert.Equal(t, created, n.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListForUserUnreadOnlyFilters(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	rows := sqlmock.NewRows([]string{"id", "user_id", "type", "message", "is_read", "created_at"}).
		AddRow(2, 7, models.NotificationNewNote, "New notes for CS101", false, time.Now())
	mock.ExpectQuery(`WHERE user_id = \$1 AND is_read = FALSE ORDER BY created_at DESC`).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	list, err := repo.ListForUser(context.Background(), 7, true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].IsRead)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReadEnforcesOwnership(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	query := regexp.QuoteMeta(`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`)

	mock.ExpectExec(query).
		WithArgs(int64(55), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.MarkRead(context.Background(), 55, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	// Someone else's notification touches zero rows.
	mock.ExpectExec(query).
		WithArgs(int64(55), int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.MarkRead(context.Background(), 55, 8)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkAllReadReturnsCount(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`)).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	count, err := repo.MarkAllRead(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
