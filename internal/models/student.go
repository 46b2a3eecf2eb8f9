package models

// Student is the read-only projection of a student
type Student struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

// StudentGroup is one enrollment of a student as shown in listings
type StudentGroup struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Fan    string `json:"fan"`
	Status string `json:"status"` // enrollment status
}

// StudentSummary is a student with the enrollments visible to the caller
type StudentSummary struct {
	ID       string         `json:"id"`
	FullName string         `json:"full_name"`
	Phone    string         `json:"phone"`
	Groups   []StudentGroup `json:"groups"`
}

// EnrollmentScope limits which enrollments are loaded for a set of students
type EnrollmentScope struct {
	GroupID   string
	CuratorID string
}
