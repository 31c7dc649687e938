package models

// TimetableSlot is one recurring period in the weekly template, keyed by
// (assignment, day, period).
type TimetableSlot struct {
	ID           int64  `db:"id" json:"id"`
	AssignmentID int64  `db:"assignment_id" json:"assignment_id"`
	DayOfWeek    string `db:"day_of_week" json:"day_of_week"`
	PeriodNumber int    `db:"period_number" json:"period_number"`
}

// TimetableRow is a slot joined with its subject, faculty and section for
// the week-grid view, ordered by weekday then period.
type TimetableRow struct {
	DayOfWeek    string  `db:"day_of_week" json:"day_of_week"`
	PeriodNumber int     `db:"period_number" json:"period_number"`
	SubjectCode  string  `db:"subject_code" json:"subject_code"`
	SubjectName  string  `db:"subject_name" json:"subject_name"`
	FacultyID    int64   `db:"faculty_id" json:"faculty_id"`
	FacultyName  *string `db:"faculty_name" json:"faculty_name,omitempty"`
	Section      string  `db:"section" json:"section"`
}
