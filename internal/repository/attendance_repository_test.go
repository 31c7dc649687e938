package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collegeportal/portal-api/internal/models"
)

func newAttendanceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

func TestSubmitForSessionSkipsInvalidEntries(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO attendance_records`).
		WithArgs(int64(5), int64(11), models.AttendanceStatusPresent).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO attendance_records`).
		WithArgs(int64(5), int64(12), models.AttendanceStatusAbsent).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	entries := []models.AttendanceEntry{
		{StudentID: 11, Status: models.AttendanceStatusPresent},
		{StudentID: 0, Status: models.AttendanceStatusPresent},
		{StudentID: 13, Status: "late"},
		{StudentID: 12, Status: models.AttendanceStatusAbsent},
	}
	processed, err := repo.SubmitForSession(context.Background(), 5, entries)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitForSessionRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO attendance_records`).
		WithArgs(int64(5), int64(11), models.AttendanceStatusPresent).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := repo.SubmitForSession(context.Background(), 5, []models.AttendanceEntry{
		{StudentID: 11, Status: models.AttendanceStatusPresent},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusReturnsOwningStudent(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE attendance_records SET status = $1 WHERE id = $2 RETURNING student_id`)).
		WithArgs(models.AttendanceStatusAbsent, int64(44)).
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow(17))

	ok, studentID, err := repo.UpdateStatus(context.Background(), 44, models.AttendanceStatusAbsent)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(17), studentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusMissingRowIsNotAnError(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE attendance_records SET status = $1 WHERE id = $2 RETURNING student_id`)).
		WithArgs(models.AttendanceStatusPresent, int64(999)).
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}))

	ok, _, err := repo.UpdateStatus(context.Background(), 999, models.AttendanceStatusPresent)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentOverallComputesPercentage(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"subject_code", "subject_name", "semester", "total_sessions", "present_sessions"}).
		AddRow("CS101", "Data Structures", 3, 8, 6).
		AddRow("CS102", "Operating Systems", 3, 0, 0)
	mock.ExpectQuery(`SELECT s.code AS subject_code`).
		WithArgs(int64(17)).
		WillReturnRows(rows)

	summaries, err := repo.StudentOverall(context.Background(), 17)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.InDelta(t, 75.0, summaries[0].Percentage, 0.001)
	assert.Zero(t, summaries[1].Percentage)
	assert.NoError(t, mock.ExpectationsWereMet())
}
