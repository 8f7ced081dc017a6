package model

import "time"

// User roles.  Admins manage sites and slots; workers book and clock in.
const (
	RoleWorker = "WORKER"
	RoleAdmin  = "ADMIN"
)

// User is an authenticated account, either a worker or an administrator.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	FullName     string    // users.full_name
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
