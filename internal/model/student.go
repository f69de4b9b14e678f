package model

import "time"

// Student represents a student identity. Credentials are owned by the
// external auth service; PasswordHash is stored here only so dev seeding
// can provision accounts that service accepts.
type Student struct {
	ID           int       `json:"id"`
	MatricNo     string    `json:"matric_no"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
