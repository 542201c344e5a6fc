package models

import "time"

// Program is a named health initiative clients can enroll in.
type Program struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ProgramFilter narrows program listings.
type ProgramFilter struct {
	Search   string
	Page     int
	PageSize int
}
