package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/collegeportal/portal-api/internal/models"
)

// MarksRepository owns mark and assessment-type rows.
type MarksRepository struct {
	db *sqlx.DB
}

// NewMarksRepository constructs the repository.
func NewMarksRepository(db *sqlx.DB) *MarksRepository {
	return &MarksRepository{db: db}
}

// GetOrCreateAssessmentType resolves an assessment category by name,
// creating it when absent, with the same insert-then-refetch race handling
// as the resolver's dimension rows.
func (r *MarksRepository) GetOrCreateAssessmentType(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, `SELECT id FROM assessment_types WHERE name = $1`, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup assessment type: %w", err)
	}

	err = r.db.GetContext(ctx, &id,
		`INSERT INTO assessment_types (name) VALUES ($1) ON CONFLICT (name) DO NOTHING RETURNING id`, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("create assessment type: %w", err)
	}

	if err := r.db.GetContext(ctx, &id, `SELECT id FROM assessment_types WHERE name = $1`, name); err != nil {
		return 0, fmt.Errorf("refetch assessment type after conflict: %w", err)
	}
	return id, nil
}

// UpsertScore writes one mark for (student, offering, assessment type),
// overwriting any prior score.
func (r *MarksRepository) UpsertScore(ctx context.Context, mark models.Mark) error {
	const query = `INSERT INTO marks (student_id, offering_id, assessment_type_id, score) VALUES ($1, $2, $3, $4)
        ON CONFLICT (student_id, offering_id, assessment_type_id) DO UPDATE SET score = EXCLUDED.score`
	if _, err := r.db.ExecContext(ctx, query, mark.StudentID, mark.OfferingID, mark.AssessmentTypeID, mark.Score); err != nil {
		return fmt.Errorf("upsert mark: %w", err)
	}
	return nil
}

type studentMarkRow struct {
	StudentID      int64    `db:"student_id"`
	Name           string   `db:"student_name"`
	USN            string   `db:"usn"`
	AssessmentName *string  `db:"assessment_name"`
	Score          *float64 `db:"score"`
}

// StudentsForClassWithMarks lists every student of (dept, semester, section)
// with their scores for the offering keyed by assessment name. Students with
// no marks yet appear with an empty score map; a stored 0 stays a present
// value.
func (r *MarksRepository) StudentsForClassWithMarks(ctx context.Context, deptID int64, semester int, section string, offeringID int64) ([]models.StudentMarksRow, error) {
	const query = `SELECT sd.id AS student_id, sd.name AS student_name, sd.usn,
        at.name AS assessment_name, m.score
        FROM student_details sd
        LEFT JOIN marks m ON m.student_id = sd.id AND m.offering_id = $1
        LEFT JOIN assessment_types at ON at.id = m.assessment_type_id
        WHERE sd.dept_id = $2 AND sd.semester = $3 AND sd.section = $4
        ORDER BY sd.usn, at.name`

	var raw []studentMarkRow
	if err := r.db.SelectContext(ctx, &raw, query, offeringID, deptID, semester, section); err != nil {
		return nil, fmt.Errorf("students with marks: %w", err)
	}

	ordered := make([]models.StudentMarksRow, 0)
	index := make(map[int64]int)
	for _, row := range raw {
		pos, ok := index[row.StudentID]
		if !ok {
			pos = len(ordered)
			index[row.StudentID] = pos
			ordered = append(ordered, models.StudentMarksRow{
				StudentID: row.StudentID,
				Name:      row.Name,
				USN:       row.USN,
				Scores:    make(map[string]float64),
			})
		}
		if row.AssessmentName != nil && row.Score != nil {
			ordered[pos].Scores[*row.AssessmentName] = *row.Score
		}
	}
	return ordered, nil
}

type subjectScoreRow struct {
	SubjectCode    string   `db:"subject_code"`
	SubjectName    string   `db:"subject_name"`
	AssessmentName *string  `db:"assessment_name"`
	Score          *float64 `db:"score"`
}

// StudentAllScores returns, for every offering matching the student's
// department and semester, the assessment-name to score map. Subjects with
// no marks entered still appear with an empty map.
func (r *MarksRepository) StudentAllScores(ctx context.Context, studentID, deptID int64, semester int) ([]models.SubjectScores, error) {
	const query = `SELECT s.code AS subject_code, s.name AS subject_name,
        at.name AS assessment_name, m.score
        FROM subject_offerings so
        JOIN subjects s ON s.id = so.subject_id
        LEFT JOIN marks m ON m.offering_id = so.id AND m.student_id = $1
        LEFT JOIN assessment_types at ON at.id = m.assessment_type_id
        WHERE so.dept_id = $2 AND so.semester = $3
        ORDER BY s.code, at.name`

	var raw []subjectScoreRow
	if err := r.db.SelectContext(ctx, &raw, query, studentID, deptID, semester); err != nil {
		return nil, fmt.Errorf("student all scores: %w", err)
	}

	ordered := make([]models.SubjectScores, 0)
	index := make(map[string]int)
	for _, row := range raw {
		pos, ok := index[row.SubjectCode]
		if !ok {
			pos = len(ordered)
			index[row.SubjectCode] = pos
			ordered = append(ordered, models.SubjectScores{
				SubjectCode: row.SubjectCode,
				SubjectName: row.SubjectName,
				Scores:      make(map[string]float64),
			})
		}
		if row.AssessmentName != nil && row.Score != nil {
			ordered[pos].Scores[*row.AssessmentName] = *row.Score
		}
	}
	return ordered, nil
}
