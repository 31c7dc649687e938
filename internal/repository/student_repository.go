package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/collegeportal/portal-api/internal/models"
)

// StudentRepository handles student detail rows and roster queries.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// ListForSection returns the roster for (dept, semester, section) ordered by
// USN, the ordering used by attendance forms and marks sheets.
func (r *StudentRepository) ListForSection(ctx context.Context, deptID int64, semester int, section string) ([]models.StudentDetail, error) {
	const query = `SELECT id, user_id, name, usn, dept_id, semester, section
        FROM student_details
        WHERE dept_id = $1 AND semester = $2 AND section = $3
        ORDER BY usn`
	var rows []models.StudentDetail
	if err := r.db.SelectContext(ctx, &rows, query, deptID, semester, section); err != nil {
		return nil, fmt.Errorf("list section roster: %w", err)
	}
	return rows, nil
}

// FindByUserID resolves a student detail row from its user account.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID int64) (*models.StudentDetail, error) {
	const query = `SELECT id, user_id, name, usn, dept_id, semester, section FROM student_details WHERE user_id = $1`
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, userID); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create inserts a student detail row and fills the generated id.
func (r *StudentRepository) Create(ctx context.Context, detail *models.StudentDetail) error {
	const query = `INSERT INTO student_details (user_id, name, usn, dept_id, semester, section)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query,
		detail.UserID, detail.Name, detail.USN, detail.DeptID, detail.Semester, detail.Section).
		Scan(&detail.ID); err != nil {
		return fmt.Errorf("create student detail: %w", err)
	}
	return nil
}

// CreateFaculty inserts a faculty detail row and fills the generated id.
func (r *StudentRepository) CreateFaculty(ctx context.Context, detail *models.FacultyDetail) error {
	const query = `INSERT INTO faculty_details (user_id, name, dept_id) VALUES ($1, $2, $3) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, detail.UserID, detail.Name, detail.DeptID).
		Scan(&detail.ID); err != nil {
		return fmt.Errorf("create faculty detail: %w", err)
	}
	return nil
}

// FacultyByUserID resolves a faculty detail row from its user account.
func (r *StudentRepository) FacultyByUserID(ctx context.Context, userID int64) (*models.FacultyDetail, error) {
	const query = `SELECT id, user_id, name, dept_id FROM faculty_details WHERE user_id = $1`
	var detail models.FacultyDetail
	if err := r.db.GetContext(ctx, &detail, query, userID); err != nil {
		return nil, err
	}
	return &detail, nil
}
