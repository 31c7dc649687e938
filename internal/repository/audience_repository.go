package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/collegeportal/portal-api/internal/models"
)

// AudienceRepository answers membership queries for notification targeting
// and circular visibility. It returns user ids, never detail-table ids.
type AudienceRepository struct {
	db *sqlx.DB
}

// NewAudienceRepository constructs the repository.
func NewAudienceRepository(db *sqlx.DB) *AudienceRepository {
	return &AudienceRepository{db: db}
}

// AllStudentUserIDs returns the user id of every registered student.
func (r *AudienceRepository) AllStudentUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	const query = `SELECT u.id FROM users u JOIN student_details sd ON sd.user_id = u.id`
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("all student user ids: %w", err)
	}
	return ids, nil
}

// AllFacultyUserIDs returns the user id of every faculty member.
func (r *AudienceRepository) AllFacultyUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	const query = `SELECT u.id FROM users u JOIN faculty_details fd ON fd.user_id = u.id`
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("all faculty user ids: %w", err)
	}
	return ids, nil
}

// StudentUserIDsByDept returns student user ids for one department,
// optionally narrowed to a semester cohort.
func (r *AudienceRepository) StudentUserIDsByDept(ctx context.Context, deptID int64, semester *int) ([]int64, error) {
	query := `SELECT u.id FROM users u JOIN student_details sd ON sd.user_id = u.id WHERE sd.dept_id = $1`
	args := []interface{}{deptID}
	if semester != nil {
		query += ` AND sd.semester = $2`
		args = append(args, *semester)
	}
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("student user ids by dept: %w", err)
	}
	return ids, nil
}

// FacultyUserIDsByDept returns faculty user ids for one department.
func (r *AudienceRepository) FacultyUserIDsByDept(ctx context.Context, deptID int64) ([]int64, error) {
	var ids []int64
	const query = `SELECT u.id FROM users u JOIN faculty_details fd ON fd.user_id = u.id WHERE fd.dept_id = $1`
	if err := r.db.SelectContext(ctx, &ids, query, deptID); err != nil {
		return nil, fmt.Errorf("faculty user ids by dept: %w", err)
	}
	return ids, nil
}

// StudentUserIDsByOffering returns the user ids of students in the
// department+semester an offering is taught to, the cohort notified when a
// note lands on that offering.
func (r *AudienceRepository) StudentUserIDsByOffering(ctx context.Context, offeringID int64) ([]int64, error) {
	var ids []int64
	const query = `SELECT u.id FROM users u
        JOIN student_details sd ON sd.user_id = u.id
        JOIN subject_offerings so ON so.dept_id = sd.dept_id AND so.semester = sd.semester
        WHERE so.id = $1`
	if err := r.db.SelectContext(ctx, &ids, query, offeringID); err != nil {
		return nil, fmt.Errorf("student user ids by offering: %w", err)
	}
	return ids, nil
}

// UserIDsForStudentIDs maps student detail ids to their user account ids,
// used when an event targets the exact students it touched (marks updates).
func (r *AudienceRepository) UserIDsForStudentIDs(ctx context.Context, studentIDs []int64) ([]int64, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT user_id FROM student_details WHERE id IN (?)`, studentIDs)
	if err != nil {
		return nil, fmt.Errorf("build student user id query: %w", err)
	}
	query = r.db.Rebind(query)
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("user ids for students: %w", err)
	}
	return ids, nil
}

// VisibleCirculars lists circulars a user may see, newest first. The same
// membership rules drive notification fan-out (see AudienceService), so the
// polling view and the live push can never drift apart: a student sees
// audience all|students plus specific_dept circulars of their own
// department, faculty see all|faculty plus their department's, and admins
// see everything.
func (r *AudienceRepository) VisibleCirculars(ctx context.Context, role models.UserRole, deptID *int64) ([]models.CircularRow, error) {
	query := `SELECT c.id, c.faculty_id, c.title, c.content, c.audience, c.dept_id, c.attachment_path, c.posted_at,
        d.code AS dept_code, d.name AS dept_name, fd.name AS faculty_name
        FROM circulars c
        LEFT JOIN departments d ON d.id = c.dept_id
        LEFT JOIN faculty_details fd ON fd.id = c.faculty_id
        WHERE `
	var args []interface{}

	switch role {
	case models.RoleStudent:
		query += `(c.audience = 'all' OR c.audience = 'students'`
		if deptID != nil {
			query += ` OR (c.audience = 'specific_dept' AND c.dept_id = $1)`
			args = append(args, *deptID)
		}
		query += `)`
	case models.RoleFaculty:
		query += `(c.audience = 'all' OR c.audience = 'faculty'`
		if deptID != nil {
			query += ` OR (c.audience = 'specific_dept' AND c.dept_id = $1)`
			args = append(args, *deptID)
		}
		query += `)`
	default:
		query += `c.audience IN ('all', 'students', 'faculty', 'specific_dept')`
	}
	query += ` ORDER BY c.posted_at DESC`

	var rows []models.CircularRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("visible circulars: %w", err)
	}
	return rows, nil
}
