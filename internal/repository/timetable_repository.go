package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/collegeportal/portal-api/internal/models"
)

// TimetableRepository handles the weekly period template.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs the repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// UpsertSlot writes one template slot keyed on (assignment, day, period);
// re-saving the same slot replaces the assignment occupying it.
func (r *TimetableRepository) UpsertSlot(ctx context.Context, slot models.TimetableSlot) error {
	const query = `INSERT INTO timetable_slots (assignment_id, day_of_week, period_number)
        VALUES ($1, $2, $3)
        ON CONFLICT (assignment_id, day_of_week, period_number) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, slot.AssignmentID, slot.DayOfWeek, slot.PeriodNumber); err != nil {
		return fmt.Errorf("upsert timetable slot: %w", err)
	}
	return nil
}

// WeekForClass returns the template grid for (dept, semester) ordered by
// weekday then period, optionally narrowed to one section.
func (r *TimetableRepository) WeekForClass(ctx context.Context, deptID int64, semester int, section string) ([]models.TimetableRow, error) {
	query := `SELECT tt.day_of_week, tt.period_number,
        s.code AS subject_code, s.name AS subject_name,
        fa.faculty_id, fd.name AS faculty_name, fa.section
        FROM timetable_slots tt
        JOIN faculty_assignments fa ON fa.id = tt.assignment_id
        JOIN subject_offerings so ON so.id = fa.offering_id
        JOIN subjects s ON s.id = so.subject_id
        LEFT JOIN faculty_details fd ON fd.id = fa.faculty_id
        WHERE so.dept_id = $1 AND so.semester = $2`
	args := []interface{}{deptID, semester}
	if section != "" {
		query += ` AND fa.section = $3`
		args = append(args, section)
	}
	query += ` ORDER BY CASE tt.day_of_week
        WHEN 'Monday' THEN 1 WHEN 'Tuesday' THEN 2 WHEN 'Wednesday' THEN 3
        WHEN 'Thursday' THEN 4 WHEN 'Friday' THEN 5 WHEN 'Saturday' THEN 6
        ELSE 7 END, tt.period_number`

	var rows []models.TimetableRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("timetable for class: %w", err)
	}
	return rows, nil
}
