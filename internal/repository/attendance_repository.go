package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/collegeportal/portal-api/internal/models"
)

// AttendanceRepository owns attendance rows exclusively; sessions themselves
// belong to the resolver.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// SubmitForSession upserts one attendance row per entry, keyed on
// (session_id, student_id), inside a single transaction. Entries missing a
// student id or status are skipped; the returned count covers only processed
// entries. Any storage failure rolls back the whole batch.
func (r *AttendanceRepository) SubmitForSession(ctx context.Context, sessionID int64, entries []models.AttendanceEntry) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin attendance batch: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback() //nolint:errcheck
		}
	}()

	const query = `INSERT INTO attendance_records (session_id, student_id, status) VALUES ($1, $2, $3)
        ON CONFLICT (session_id, student_id) DO UPDATE SET status = EXCLUDED.status`

	processed := 0
	for _, entry := range entries {
		if entry.StudentID == 0 || !entry.Status.Valid() {
			continue
		}
		if _, err := tx.ExecContext(ctx, query, sessionID, entry.StudentID, entry.Status); err != nil {
			return 0, fmt.Errorf("upsert attendance record: %w", err)
		}
		processed++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit attendance batch: %w", err)
	}
	committed = true
	return processed, nil
}

// HistoryForClass lists sessions for a class ordered by date descending then
// period ascending, optionally narrowed by subject and date range.
func (r *AttendanceRepository) HistoryForClass(ctx context.Context, deptID int64, semester int, section string, subjectID *int64, filter models.ClassHistoryFilter) ([]models.SessionHistoryRow, error) {
	query := `SELECT cs.id AS session_id, cs.session_date, cs.day_of_week, cs.period_number,
        s.code AS subject_code, s.name AS subject_name, fd.name AS faculty_name, fa.section
        FROM class_sessions cs
        JOIN faculty_assignments fa ON fa.id = cs.assignment_id
        JOIN subject_offerings so ON so.id = fa.offering_id
        JOIN subjects s ON s.id = so.subject_id
        JOIN faculty_details fd ON fd.id = fa.faculty_id
        WHERE so.dept_id = $1 AND so.semester = $2 AND fa.section = $3`
	args := []interface{}{deptID, semester, section}

	var conditions []string
	if subjectID != nil {
		conditions = append(conditions, fmt.Sprintf("s.id = $%d", len(args)+1))
		args = append(args, *subjectID)
	}
	if filter.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("cs.session_date >= $%d", len(args)+1))
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("cs.session_date <= $%d", len(args)+1))
		args = append(args, *filter.EndDate)
	}
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY cs.session_date DESC, cs.period_number ASC"

	var rows []models.SessionHistoryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list class sessions: %w", err)
	}
	return rows, nil
}

// DetailsForSession returns per-student status for one session ordered by
// the student roll identifier.
func (r *AttendanceRepository) DetailsForSession(ctx context.Context, sessionID int64) ([]models.SessionDetailRow, error) {
	const query = `SELECT a.id AS attendance_id, a.status, sd.id AS student_id, sd.name AS student_name, sd.usn
        FROM attendance_records a
        JOIN student_details sd ON sd.id = a.student_id
        WHERE a.session_id = $1
        ORDER BY sd.usn`

	var rows []models.SessionDetailRow
	if err := r.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, fmt.Errorf("session attendance details: %w", err)
	}
	return rows, nil
}

// UpdateStatus changes a single attendance row and reports whether a row was
// actually touched, returning the owning student id so callers can
// invalidate per-student caches.
func (r *AttendanceRepository) UpdateStatus(ctx context.Context, attendanceID int64, status models.AttendanceStatus) (bool, int64, error) {
	var studentID int64
	err := r.db.QueryRowxContext(ctx,
		`UPDATE attendance_records SET status = $1 WHERE id = $2 RETURNING student_id`,
		status, attendanceID).Scan(&studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("update attendance status: %w", err)
	}
	return true, studentID, nil
}

// StudentOverall aggregates a student's present/total counts per subject
// across every session they hold a record for.
func (r *AttendanceRepository) StudentOverall(ctx context.Context, studentID int64) ([]models.SubjectAttendanceSummary, error) {
	const query = `SELECT s.code AS subject_code, s.name AS subject_name, so.semester,
        COUNT(a.id) AS total_sessions,
        COALESCE(SUM(CASE WHEN a.status = 'present' THEN 1 ELSE 0 END), 0) AS present_sessions
        FROM attendance_records a
        JOIN class_sessions cs ON cs.id = a.session_id
        JOIN faculty_assignments fa ON fa.id = cs.assignment_id
        JOIN subject_offerings so ON so.id = fa.offering_id
        JOIN subjects s ON s.id = so.subject_id
        WHERE a.student_id = $1
        GROUP BY s.id, s.code, s.name, so.semester
        ORDER BY so.semester, s.name`

	var rows []models.SubjectAttendanceSummary
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("student overall attendance: %w", err)
	}
	for i := range rows {
		if rows[i].TotalSessions > 0 {
			rows[i].Percentage = float64(rows[i].PresentSessions) / float64(rows[i].TotalSessions) * 100
		}
	}
	return rows, nil
}
