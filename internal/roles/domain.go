package roles

import "time"

// Role is a named permission grouping with protection flags.
type Role struct {
	ID                int64
	Name              string
	IsDeleteProtected bool
	IsUpdateProtected bool
	IsPermanent       bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
