package models

import "time"

// Audience is the rule defining which users a circular or notification
// targets.
type Audience string

const (
	AudienceAll          Audience = "all"
	AudienceStudents     Audience = "students"
	AudienceFaculty      Audience = "faculty"
	AudienceSpecificDept Audience = "specific_dept"
)

// Valid returns true when the audience is a supported value.
func (a Audience) Valid() bool {
	switch a {
	case AudienceAll, AudienceStudents, AudienceFaculty, AudienceSpecificDept:
		return true
	default:
		return false
	}
}

// AudienceDescriptor scopes an event to its recipients. DeptID is required
// for specific_dept; Semester optionally narrows student audiences to a
// department cohort (timetable updates).
type AudienceDescriptor struct {
	Audience Audience
	DeptID   *int64
	Semester *int
}

// Circular is an announcement scoped to an audience descriptor.
type Circular struct {
	ID             int64     `db:"id" json:"circular_id"`
	FacultyID      *int64    `db:"faculty_id" json:"faculty_id,omitempty"`
	Title          string    `db:"title" json:"title"`
	Content        string    `db:"content" json:"content"`
	Audience       Audience  `db:"audience" json:"audience"`
	DeptID         *int64    `db:"dept_id" json:"dept_id,omitempty"`
	AttachmentPath *string   `db:"attachment_path" json:"attachment_path,omitempty"`
	PostedAt       time.Time `db:"posted_at" json:"posted_at"`
}

// CircularRow extends Circular with joined display metadata.
type CircularRow struct {
	Circular
	DeptCode    *string `db:"dept_code" json:"dept_code,omitempty"`
	DeptName    *string `db:"dept_name" json:"dept_name,omitempty"`
	FacultyName *string `db:"faculty_name" json:"posted_by_faculty,omitempty"`
}
