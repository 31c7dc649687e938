package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/collegeportal/portal-api/internal/models"
)

// ResolverRepository translates human-facing identifiers (department codes,
// subject codes, user ids) into surrogate keys, creating missing dimension
// rows on first use. It is the only component that inserts departments,
// subjects, offerings, assignments and class sessions.
//
// Every get-or-create relies on a uniqueness constraint over the natural key:
// the insert uses ON CONFLICT DO NOTHING RETURNING, and a sql.ErrNoRows from
// RETURNING means another writer won the race, so the row is re-read instead
// of surfacing the conflict.
type ResolverRepository struct {
	db *sqlx.DB
}

// NewResolverRepository constructs the repository.
func NewResolverRepository(db *sqlx.DB) *ResolverRepository {
	return &ResolverRepository{db: db}
}

// ResolveEntityIDs looks up surrogate keys for whichever filters are present.
// Filters that do not resolve are left nil in the result; callers check
// presence before depending on a key.
func (r *ResolverRepository) ResolveEntityIDs(ctx context.Context, filters models.EntityFilters) (models.EntityIDs, error) {
	var ids models.EntityIDs

	if filters.FacultyUserID != 0 {
		var detail models.FacultyDetail
		err := r.db.GetContext(ctx, &detail,
			`SELECT id, user_id, name, dept_id FROM faculty_details WHERE user_id = $1`,
			filters.FacultyUserID)
		switch {
		case err == nil:
			ids.FacultyID = &detail.ID
			ids.FacultyDeptID = &detail.DeptID
		case !errors.Is(err, sql.ErrNoRows):
			return models.EntityIDs{}, fmt.Errorf("resolve faculty detail: %w", err)
		}
	}

	if filters.StudentUserID != 0 {
		var detail models.StudentDetail
		err := r.db.GetContext(ctx, &detail,
			`SELECT id, user_id, name, usn, dept_id, semester, section FROM student_details WHERE user_id = $1`,
			filters.StudentUserID)
		switch {
		case err == nil:
			ids.StudentID = &detail.ID
			ids.StudentDeptID = &detail.DeptID
			ids.StudentSemester = &detail.Semester
			ids.StudentSection = &detail.Section
		case !errors.Is(err, sql.ErrNoRows):
			return models.EntityIDs{}, fmt.Errorf("resolve student detail: %w", err)
		}
	}

	if filters.DeptCode != "" {
		var deptID int64
		err := r.db.GetContext(ctx, &deptID, `SELECT id FROM departments WHERE code = $1`, filters.DeptCode)
		switch {
		case err == nil:
			ids.DeptID = &deptID
		case !errors.Is(err, sql.ErrNoRows):
			return models.EntityIDs{}, fmt.Errorf("resolve department id: %w", err)
		}
	}

	if filters.SubjectCode != "" {
		var subjectID int64
		err := r.db.GetContext(ctx, &subjectID, `SELECT id FROM subjects WHERE code = $1`, filters.SubjectCode)
		switch {
		case err == nil:
			ids.SubjectID = &subjectID
		case !errors.Is(err, sql.ErrNoRows):
			return models.EntityIDs{}, fmt.Errorf("resolve subject id: %w", err)
		}
	}

	return ids, nil
}

// GetOrCreateDepartment resolves a department by code, creating it when
// absent. The name is refreshed on every call; the code is the stable key.
func (r *ResolverRepository) GetOrCreateDepartment(ctx context.Context, code, name string) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, `SELECT id FROM departments WHERE code = $1`, code)
	if err == nil {
		if _, uerr := r.db.ExecContext(ctx, `UPDATE departments SET name = $1 WHERE id = $2`, name, id); uerr != nil {
			return 0, fmt.Errorf("refresh department name: %w", uerr)
		}
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup department: %w", err)
	}

	err = r.db.GetContext(ctx, &id,
		`INSERT INTO departments (code, name) VALUES ($1, $2) ON CONFLICT (code) DO NOTHING RETURNING id`,
		code, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("create department: %w", err)
	}

	// Lost the insert race: the row exists now, refresh name and return it.
	if err := r.db.GetContext(ctx, &id, `SELECT id FROM departments WHERE code = $1`, code); err != nil {
		return 0, fmt.Errorf("refetch department after conflict: %w", err)
	}
	if _, uerr := r.db.ExecContext(ctx, `UPDATE departments SET name = $1 WHERE id = $2`, name, id); uerr != nil {
		return 0, fmt.Errorf("refresh department name: %w", uerr)
	}
	return id, nil
}

// GetOrCreateSubject resolves a subject by code, creating it when absent,
// refreshing the name on hits.
func (r *ResolverRepository) GetOrCreateSubject(ctx context.Context, code, name string) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, `SELECT id FROM subjects WHERE code = $1`, code)
	if err == nil {
		if _, uerr := r.db.ExecContext(ctx, `UPDATE subjects SET name = $1 WHERE id = $2`, name, id); uerr != nil {
			return 0, fmt.Errorf("refresh subject name: %w", uerr)
		}
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup subject: %w", err)
	}

	err = r.db.GetContext(ctx, &id,
		`INSERT INTO subjects (code, name) VALUES ($1, $2) ON CONFLICT (code) DO NOTHING RETURNING id`,
		code, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("create subject: %w", err)
	}

	if err := r.db.GetContext(ctx, &id, `SELECT id FROM subjects WHERE code = $1`, code); err != nil {
		return 0, fmt.Errorf("refetch subject after conflict: %w", err)
	}
	if _, uerr := r.db.ExecContext(ctx, `UPDATE subjects SET name = $1 WHERE id = $2`, name, id); uerr != nil {
		return 0, fmt.Errorf("refresh subject name: %w", uerr)
	}
	return id, nil
}

// GetOrCreateOffering resolves an offering by its (subject, dept, semester)
// triple, creating it when absent.
func (r *ResolverRepository) GetOrCreateOffering(ctx context.Context, subjectID, deptID int64, semester int) (int64, error) {
	const lookup = `SELECT id FROM subject_offerings WHERE subject_id = $1 AND dept_id = $2 AND semester = $3`

	var id int64
	err := r.db.GetContext(ctx, &id, lookup, subjectID, deptID, semester)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup offering: %w", err)
	}

	err = r.db.GetContext(ctx, &id,
		`INSERT INTO subject_offerings (subject_id, dept_id, semester) VALUES ($1, $2, $3)
         ON CONFLICT (subject_id, dept_id, semester) DO NOTHING RETURNING id`,
		subjectID, deptID, semester)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("create offering: %w", err)
	}

	if err := r.db.GetContext(ctx, &id, lookup, subjectID, deptID, semester); err != nil {
		return 0, fmt.Errorf("refetch offering after conflict: %w", err)
	}
	return id, nil
}

// GetOrCreateAssignment resolves a faculty assignment by its (offering,
// faculty, section) triple, creating it when absent.
func (r *ResolverRepository) GetOrCreateAssignment(ctx context.Context, offeringID, facultyID int64, section string) (int64, error) {
	const lookup = `SELECT id FROM faculty_assignments WHERE offering_id = $1 AND faculty_id = $2 AND section = $3`

	var id int64
	err := r.db.GetContext(ctx, &id, lookup, offeringID, facultyID, section)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup assignment: %w", err)
	}

	err = r.db.GetContext(ctx, &id,
		`INSERT INTO faculty_assignments (offering_id, faculty_id, section) VALUES ($1, $2, $3)
         ON CONFLICT (offering_id, faculty_id, section) DO NOTHING RETURNING id`,
		offeringID, facultyID, section)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("create assignment: %w", err)
	}

	if err := r.db.GetContext(ctx, &id, lookup, offeringID, facultyID, section); err != nil {
		return 0, fmt.Errorf("refetch assignment after conflict: %w", err)
	}
	return id, nil
}

// ResolveOrCreateClassSession resolves a class session by (assignment, date,
// period), creating it when absent. The weekday is derived from the date so
// it can never disagree with it.
func (r *ResolverRepository) ResolveOrCreateClassSession(ctx context.Context, assignmentID int64, date time.Time, periodNumber int) (int64, error) {
	const lookup = `SELECT id FROM class_sessions WHERE assignment_id = $1 AND session_date = $2 AND period_number = $3`

	var id int64
	err := r.db.GetContext(ctx, &id, lookup, assignmentID, date, periodNumber)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup class session: %w", err)
	}

	dayOfWeek := date.Weekday().String()
	err = r.db.GetContext(ctx, &id,
		`INSERT INTO class_sessions (assignment_id, session_date, day_of_week, period_number) VALUES ($1, $2, $3, $4)
         ON CONFLICT (assignment_id, session_date, period_number) DO NOTHING RETURNING id`,
		assignmentID, date, dayOfWeek, periodNumber)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("create class session: %w", err)
	}

	if err := r.db.GetContext(ctx, &id, lookup, assignmentID, date, periodNumber); err != nil {
		return 0, fmt.Errorf("refetch class session after conflict: %w", err)
	}
	return id, nil
}

// FindOffering looks up an offering without creating it. Returns
// sql.ErrNoRows when absent.
func (r *ResolverRepository) FindOffering(ctx context.Context, subjectID, deptID int64, semester int) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id,
		`SELECT id FROM subject_offerings WHERE subject_id = $1 AND dept_id = $2 AND semester = $3`,
		subjectID, deptID, semester)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, err
		}
		return 0, fmt.Errorf("find offering: %w", err)
	}
	return id, nil
}

// FindAssignment looks up a faculty assignment without creating it. Returns
// sql.ErrNoRows when absent.
func (r *ResolverRepository) FindAssignment(ctx context.Context, offeringID, facultyID int64, section string) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id,
		`SELECT id FROM faculty_assignments WHERE offering_id = $1 AND faculty_id = $2 AND section = $3`,
		offeringID, facultyID, section)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, err
		}
		return 0, fmt.Errorf("find assignment: %w", err)
	}
	return id, nil
}

// SubjectNameByOffering returns the subject display name for an offering.
func (r *ResolverRepository) SubjectNameByOffering(ctx context.Context, offeringID int64) (string, error) {
	var name string
	err := r.db.GetContext(ctx, &name,
		`SELECT s.name FROM subject_offerings so JOIN subjects s ON s.id = so.subject_id WHERE so.id = $1`,
		offeringID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
		return "", fmt.Errorf("subject name by offering: %w", err)
	}
	return name, nil
}
