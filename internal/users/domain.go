package users

import "time"

// User is an identity as seen by the administration module.
type User struct {
	ID         int64
	Email      string
	RoleID     int64
	RoleName   string
	IsVerified bool
	IsActive   bool
	DeletedAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
