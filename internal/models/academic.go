package models

// Department is a dimension row keyed by its stable short code. The name is
// mutable metadata refreshed on every get-or-create.
type Department struct {
	ID   int64  `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}

// Subject follows the same code-keyed, mutable-name pattern as Department.
type Subject struct {
	ID   int64  `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}

// SubjectOffering says "this subject is taught to this department in this
// semester". Unique on (subject_id, dept_id, semester).
type SubjectOffering struct {
	ID        int64 `db:"id" json:"id"`
	SubjectID int64 `db:"subject_id" json:"subject_id"`
	DeptID    int64 `db:"dept_id" json:"dept_id"`
	Semester  int   `db:"semester" json:"semester"`
}

// FacultyAssignment says "this faculty teaches this offering to this
// section". Unique on (offering_id, faculty_id, section).
type FacultyAssignment struct {
	ID         int64  `db:"id" json:"id"`
	OfferingID int64  `db:"offering_id" json:"offering_id"`
	FacultyID  int64  `db:"faculty_id" json:"faculty_id"`
	Section    string `db:"section" json:"section"`
}

// StudentDetail links a user account to its academic placement.
type StudentDetail struct {
	ID       int64  `db:"id" json:"id"`
	UserID   int64  `db:"user_id" json:"user_id"`
	Name     string `db:"name" json:"name"`
	USN      string `db:"usn" json:"usn"`
	DeptID   int64  `db:"dept_id" json:"dept_id"`
	Semester int    `db:"semester" json:"semester"`
	Section  string `db:"section" json:"section"`
}

// FacultyDetail links a user account to a faculty record.
type FacultyDetail struct {
	ID     int64  `db:"id" json:"id"`
	UserID int64  `db:"user_id" json:"user_id"`
	Name   string `db:"name" json:"name"`
	DeptID int64  `db:"dept_id" json:"dept_id"`
}

// EntityFilters selects which human-facing identifiers to resolve. Absent
// filters are simply skipped.
type EntityFilters struct {
	DeptCode      string
	SubjectCode   string
	FacultyUserID int64
	StudentUserID int64
}

// EntityIDs is the partial mapping of resolved surrogate keys. A nil field
// means the corresponding filter was absent or did not resolve; callers must
// check presence before depending on a key.
type EntityIDs struct {
	DeptID          *int64
	SubjectID       *int64
	FacultyID       *int64
	FacultyDeptID   *int64
	StudentID       *int64
	StudentDeptID   *int64
	StudentSemester *int
	StudentSection  *string
}
