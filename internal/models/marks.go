package models

// AssessmentType is a named internal-assessment category such as "IA1",
// get-or-created by name.
type AssessmentType struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Mark is one score for (student, offering, assessment type); resubmission
// overwrites the prior score.
type Mark struct {
	StudentID        int64   `db:"student_id" json:"student_id"`
	OfferingID       int64   `db:"offering_id" json:"offering_id"`
	AssessmentTypeID int64   `db:"assessment_type_id" json:"assessment_type_id"`
	Score            float64 `db:"score" json:"score"`
}

/// StudentMarksRow is one grading-sheet line: a student with their scores
// keyed by assessment name. A score of 0 is a present value; an assessment
// with no mark yet is simply absent from the map.
type StudentMarksRow struct {
	StudentID int64              `json:"student_id"`
	Name      string             `json:"student_name"`
	USN       string             `json:"roll_no"`
	Scores    map[string]float64 `json:"ia_scores"`
}

// SubjectScores groups one subject's assessment scores for a student.
type SubjectScores struct {
	SubjectCode string             `json:"subject_code"`
	SubjectName string             `json:"subject_name"`
	Scores      map[string]float64 `json:"scores"`
}
