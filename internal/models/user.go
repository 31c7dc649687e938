package models

import "time"

// UserRole represents the portal roles.
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleFaculty UserRole = "faculty"
	RoleAdmin   UserRole = "admin"
)

// Valid returns true when the role is a supported value.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleFaculty, RoleAdmin:
		return true
	default:
		return false
	}
}

// User represents an application user stored in the users table. The
// identifier column carries a USN for students and an email for staff.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Identifier   string    `db:"identifier" json:"identifier"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         UserRole  `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// UserInfo is the public projection embedded in auth responses.
type UserInfo struct {
	ID         int64    `json:"id"`
	Identifier string   `json:"identifier"`
	Role       UserRole `json:"role"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
