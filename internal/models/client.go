package models

import "time"

// Gender codes accepted for clients.
const (
	GenderMale   = "M"
	GenderFemale = "F"
	GenderOther  = "O"
)

// Client represents a person tracked by the registry.
type Client struct {
	ID               string    `db:"id" json:"id"`
	FirstName        string    `db:"first_name" json:"first_name"`
	LastName         string    `db:"last_name" json:"last_name"`
	DateOfBirth      Date      `db:"date_of_birth" json:"date_of_birth"`
	Gender           string    `db:"gender" json:"gender"`
	PhoneNumber      string    `db:"phone_number" json:"phone_number"`
	Email            string    `db:"email" json:"email"`
	Address          string    `db:"address" json:"address"`
	RegistrationDate time.Time `db:"registration_date" json:"registration_date"`
}

// FullName joins first and last name.
func (c Client) FullName() string {
	return c.FirstName + " " + c.LastName
}

// AgeAt returns the client's age in whole years on the calendar date of today.
func (c Client) AgeAt(today time.Time) int {
	dob := c.DateOfBirth
	years := today.Year() - dob.Year()
	if today.Month() < dob.Month() || (today.Month() == dob.Month() && today.Day() < dob.Day()) {
		years--
	}
	return years
}

// ClientFilter encapsulates allowed search parameters for listing clients.
type ClientFilter struct {
	Search   string
	Page     int
	PageSize int
}

// ClientProfile is the client read model: stored fields, derived fields and enrollments.
type ClientProfile struct {
	ID               string           `json:"id"`
	FirstName        string           `json:"first_name"`
	LastName         string           `json:"last_name"`
	FullName         string           `json:"full_name"`
	DateOfBirth      Date             `json:"date_of_birth"`
	Age              int              `json:"age"`
	Gender           string           `json:"gender"`
	PhoneNumber      string           `json:"phone_number"`
	Email            string           `json:"email"`
	Address          string           `json:"address"`
	RegistrationDate time.Time        `json:"registration_date"`
	Enrollments      []EnrollmentView `json:"enrollments"`
}

// NewClientProfile assembles the read model for c as of today.
func NewClientProfile(c Client, enrollments []EnrollmentView, today time.Time) ClientProfile {
	if enrollments == nil {
		enrollments = []EnrollmentView{}
	}
	return ClientProfile{
		ID:               c.ID,
		FirstName:        c.FirstName,
		LastName:         c.LastName,
		FullName:         c.FullName(),
		DateOfBirth:      c.DateOfBirth,
		Age:              c.AgeAt(today),
		Gender:           c.Gender,
		PhoneNumber:      c.PhoneNumber,
		Email:            c.Email,
		Address:          c.Address,
		RegistrationDate: c.RegistrationDate,
		Enrollments:      enrollments,
	}
}
