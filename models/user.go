package models

import "time"

// User represents an account held in the in-memory user store
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUser creates an active, unsaved User. The store assigns the ID.
func NewUser(email, fullName string) *User {
	return &User{
		Email:     email,
		FullName:  fullName,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
}
