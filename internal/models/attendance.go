package models

import "time"

// AttendanceStatus marks a student present or absent for a class session.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent:
		return true
	default:
		return false
	}
}

// ClassSession is one scheduled meeting (date + period) of a faculty
// assignment. DayOfWeek is derived from Date, never caller-supplied.
type ClassSession struct {
	ID           int64     `db:"id" json:"id"`
	AssignmentID int64     `db:"assignment_id" json:"assignment_id"`
	Date         time.Time `db:"session_date" json:"session_date"`
	DayOfWeek    string    `db:"day_of_week" json:"day_of_week"`
	PeriodNumber int       `db:"period_number" json:"period_number"`
}

// AttendanceEntry is one typed record in a batch submission.
type AttendanceEntry struct {
	StudentID int64            `json:"student_id"`
	Status    AttendanceStatus `json:"status"`
}

// SessionHistoryRow is a class session with its subject and faculty context,
// as returned by the class history listing.
type SessionHistoryRow struct {
	SessionID    int64     `db:"session_id" json:"session_id"`
	Date         time.Time `db:"session_date" json:"session_date"`
	DayOfWeek    string    `db:"day_of_week" json:"day_of_week"`
	PeriodNumber int       `db:"period_number" json:"period_number"`
	SubjectCode  string    `db:"subject_code" json:"subject_code"`
	SubjectName  string    `db:"subject_name" json:"subject_name"`
	FacultyName  string    `db:"faculty_name" json:"faculty_name"`
	Section      string    `db:"section" json:"section"`
}

// SessionDetailRow is one student's status within a session, ordered by USN.
type SessionDetailRow struct {
	AttendanceID int64            `db:"attendance_id" json:"attendance_id"`
	Status       AttendanceStatus `db:"status" json:"status"`
	StudentID    int64            `db:"student_id" json:"student_id"`
	StudentName  string           `db:"student_name" json:"student_name"`
	USN          string           `db:"usn" json:"usn"`
}

// SubjectAttendanceSummary aggregates one student's presence per subject.
// Percentage is 0 when TotalSessions is 0.
type SubjectAttendanceSummary struct {
	SubjectCode     string  `db:"subject_code" json:"subject_code"`
	SubjectName     string  `db:"subject_name" json:"subject_name"`
	Semester        int     `db:"semester" json:"semester"`
	TotalSessions   int     `db:"total_sessions" json:"total_sessions"`
	PresentSessions int     `db:"present_sessions" json:"present_sessions"`
	Percentage      float64 `db:"-" json:"attendance_percentage"`
}

// ClassHistoryFilter narrows the session history listing.
type ClassHistoryFilter struct {
	DeptCode    string
	Semester    int
	Section     string
	SubjectCode string
	StartDate   *time.Time
	EndDate     *time.Time
}
