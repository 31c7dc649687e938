package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/collegeportal/portal-api/internal/models"
)

// NoteRepository handles study-material metadata rows.
type NoteRepository struct {
	db *sqlx.DB
}

// NewNoteRepository constructs the repository.
func NewNoteRepository(db *sqlx.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// Create inserts a note and fills the generated id and timestamp.
func (r *NoteRepository) Create(ctx context.Context, n *models.Note) error {
	const query = `INSERT INTO notes (offering_id, faculty_id, title, description, file_url)
        VALUES ($1, $2, $3, $4, $5) RETURNING id, uploaded_at`
	if err := r.db.QueryRowxContext(ctx, query,
		n.OfferingID, n.FacultyID, n.Title, n.Description, n.FileURL).
		Scan(&n.ID, &n.UploadedAt); err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	return nil
}

const noteSelect = `SELECT n.id, n.offering_id, n.faculty_id, n.title, n.description, n.file_url, n.uploaded_at,
    s.code AS subject_code, s.name AS subject_name, d.code AS dept_code, d.name AS dept_name,
    so.semester, fd.name AS faculty_name
    FROM notes n
    JOIN subject_offerings so ON so.id = n.offering_id
    JOIN subjects s ON s.id = so.subject_id
    JOIN departments d ON d.id = so.dept_id
    JOIN faculty_details fd ON fd.id = n.faculty_id`

// ListByOffering returns notes for one offering, newest first.
func (r *NoteRepository) ListByOffering(ctx context.Context, offeringID int64) ([]models.NoteRow, error) {
	query := noteSelect + ` WHERE n.offering_id = $1 ORDER BY n.uploaded_at DESC`
	var rows []models.NoteRow
	if err := r.db.SelectContext(ctx, &rows, query, offeringID); err != nil {
		return nil, fmt.Errorf("list notes by offering: %w", err)
	}
	return rows, nil
}

// ListForStudentContext returns notes for every offering in the student's
// current department and semester, newest first.
func (r *NoteRepository) ListForStudentContext(ctx context.Context, deptID int64, semester int) ([]models.NoteRow, error) {
	query := noteSelect + ` WHERE so.dept_id = $1 AND so.semester = $2 ORDER BY n.uploaded_at DESC`
	var rows []models.NoteRow
	if err := r.db.SelectContext(ctx, &rows, query, deptID, semester); err != nil {
		return nil, fmt.Errorf("list notes for student: %w", err)
	}
	return rows, nil
}

// GetByID returns one note row with metadata.
func (r *NoteRepository) GetByID(ctx context.Context, id int64) (*models.NoteRow, error) {
	query := noteSelect + ` WHERE n.id = $1`
	var row models.NoteRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return &row, nil
}
