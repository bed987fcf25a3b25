package auth

import "time"

// Identity represents a user account as stored in the identity store. The
// role name rides along from a join so session claims can snapshot it.
type Identity struct {
	ID           int64
	Email        string
	PasswordHash string
	RoleID       int64
	RoleName     string
	IsVerified   bool
	IsActive     bool
	DeletedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is the durable login-session row kept for bulk revoke and audit.
type Session struct {
	ID         string
	IdentityID int64
	Role       string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	IP         string
	UserAgent  string
}

// Claims is the role-relevant snapshot carried by tokens and the session
// cache projection. Sessions are independent; claims never change in place,
// privilege changes revoke the session instead.
type Claims struct {
	SessionID  string `json:"session_id"`
	IdentityID int64  `json:"identity_id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
}
