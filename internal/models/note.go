package models

import "time"

// Note is a study material record attached to a subject offering. The file
// path is an opaque string; the core never interprets file bytes.
type Note struct {
	ID          int64     `db:"id" json:"note_id"`
	OfferingID  int64     `db:"offering_id" json:"offering_id"`
	FacultyID   int64     `db:"faculty_id" json:"faculty_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	FileURL     string    `db:"file_url" json:"file_url"`
	UploadedAt  time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// NoteRow extends Note with joined subject/department/faculty metadata.
type NoteRow struct {
	Note
	SubjectCode string `db:"subject_code" json:"subject_code"`
	SubjectName string `db:"subject_name" json:"subject_name"`
	DeptCode    string `db:"dept_code" json:"dept_code"`
	DeptName    string `db:"dept_name" json:"dept_name"`
	Semester    int    `db:"semester" json:"semester"`
	FacultyName string `db:"faculty_name" json:"faculty_name"`
}
