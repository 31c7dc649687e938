package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/collegeportal/portal-api/internal/models"
)

// CircularRepository handles circular persistence. Visibility queries live
// in AudienceRepository so push targeting and polling share one rule set.
type CircularRepository struct {
	db *sqlx.DB
}

// NewCircularRepository constructs the repository.
func NewCircularRepository(db *sqlx.DB) *CircularRepository {
	return &CircularRepository{db: db}
}

// Create inserts a circular and fills the generated id and timestamp.
func (r *CircularRepository) Create(ctx context.Context, c *models.Circular) error {
	const query = `INSERT INTO circulars (faculty_id, title, content, audience, dept_id, attachment_path)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, posted_at`
	if err := r.db.QueryRowxContext(ctx, query,
		c.FacultyID, c.Title, c.Content, c.Audience, c.DeptID, c.AttachmentPath).
		Scan(&c.ID, &c.PostedAt); err != nil {
		return fmt.Errorf("create circular: %w", err)
	}
	return nil
}

// GetByID returns one circular with its joined display metadata.
func (r *CircularRepository) GetByID(ctx context.Context, id int64) (*models.CircularRow, error) {
	const query = `SELECT c.id, c.faculty_id, c.title, c.content, c.audience, c.dept_id, c.attachment_path, c.posted_at,
        d.code AS dept_code, d.name AS dept_name, fd.name AS faculty_name
        FROM circulars c
        LEFT JOIN departments d ON d.id = c.dept_id
        LEFT JOIN faculty_details fd ON fd.id = c.faculty_id
        WHERE c.id = $1`
	var row models.CircularRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return &row, nil
}

// Update rewrites a circular's mutable fields and reports whether a row
// changed.
func (r *CircularRepository) Update(ctx context.Context, c *models.Circular) (bool, error) {
	const query = `UPDATE circulars SET title = $1, content = $2, audience = $3, dept_id = $4, attachment_path = $5 WHERE id = $6`
	res, err := r.db.ExecContext(ctx, query, c.Title, c.Content, c.Audience, c.DeptID, c.AttachmentPath, c.ID)
	if err != nil {
		return false, fmt.Errorf("update circular: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("circular rows affected: %w", err)
	}
	return affected > 0, nil
}

// Delete removes a circular and reports whether a row existed.
func (r *CircularRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM circulars WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete circular: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("circular rows affected: %w", err)
	}
	return affected > 0, nil
}

// Recent lists the latest circulars regardless of audience, for dashboards.
func (r *CircularRepository) Recent(ctx context.Context, limit int) ([]models.CircularRow, error) {
	if limit <= 0 {
		limit = 5
	}
	const query = `SELECT c.id, c.faculty_id, c.title, c.content, c.audience, c.dept_id, c.attachment_path, c.posted_at,
        d.code AS dept_code, d.name AS dept_name, fd.name AS faculty_name
        FROM circulars c
        LEFT JOIN departments d ON d.id = c.dept_id
        LEFT JOIN faculty_details fd ON fd.id = c.faculty_id
        ORDER BY c.posted_at DESC LIMIT $1`
	var rows []models.CircularRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("recent circulars: %w", err)
	}
	return rows, nil
}
