package models

import "time"

// Enrollment links one client to one program.
type Enrollment struct {
	ID             string    `db:"id" json:"id"`
	ClientID       string    `db:"client_id" json:"client_id"`
	ProgramID      string    `db:"program_id" json:"program_id"`
	EnrollmentDate time.Time `db:"enrollment_date" json:"enrollment_date"`
	Active         bool      `db:"active" json:"active"`
	Notes          string    `db:"notes" json:"notes"`
}

// EnrollmentDetail enriches Enrollment with the related program name.
type EnrollmentDetail struct {
	Enrollment
	ProgramName string `db:"program_name" json:"program_name"`
}

// View shapes the detail for nesting inside a client profile.
func (d EnrollmentDetail) View() EnrollmentView {
	return EnrollmentView{
		ID:             d.ID,
		Program:        d.ProgramID,
		ProgramName:    d.ProgramName,
		EnrollmentDate: DateOf(d.EnrollmentDate),
		Active:         d.Active,
		Notes:          d.Notes,
	}
}

// EnrollmentView is the nested enrollment representation of a client profile.
type EnrollmentView struct {
	ID             string `json:"id"`
	Program        string `json:"program"`
	ProgramName    string `json:"program_name"`
	EnrollmentDate Date   `json:"enrollment_date"`
	Active         bool   `json:"active"`
	Notes          string `json:"notes"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	ClientID  string
	ProgramID string
	Active    *bool
	Page      int
	PageSize  int
}

// EnrollOutcome is the transition taken by the enroll workflow.
type EnrollOutcome string

// Enroll workflow transitions: absent→active, inactive→active, active→active.
const (
	EnrollOutcomeEnrolled        EnrollOutcome = "enrolled"
	EnrollOutcomeReenrolled      EnrollOutcome = "reenrolled"
	EnrollOutcomeAlreadyEnrolled EnrollOutcome = "already_enrolled"
)

// EnrollResult reports the outcome of an enroll action.
type EnrollResult struct {
	Outcome    EnrollOutcome `json:"outcome"`
	Message    string        `json:"message"`
	Enrollment Enrollment    `json:"enrollment"`
	Program    Program       `json:"program"`
}
