package rbac

import "time"

// Role represents a permission grouping with protection flags. A permanent
// role is the immutable top role: it bypasses permission lookup entirely and
// cannot be targeted by permission mutations.
type Role struct {
	ID                int64
	Name              string
	IsDeleteProtected bool
	IsUpdateProtected bool
	IsPermanent       bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Action is one of the four CRUD verbs a permission entry grants.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ValidAction reports whether a is one of the four known verbs.
func ValidAction(a Action) bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// Resources is the closed set of permission resource names. Role defaults,
// entry validation and the authorization gate all consult this one list;
// a name outside it is denied everywhere.
var Resources = []string{
	"Brand",
	"Category",
	"Product",
	"Media",
	"User",
	"Role",
}

// ValidResource reports whether name belongs to the closed set.
func ValidResource(name string) bool {
	for _, r := range Resources {
		if r == name {
			return true
		}
	}
	return false
}

// SubjectType distinguishes role-level entries from per-identity overrides.
type SubjectType string

const (
	SubjectRole     SubjectType = "role"
	SubjectIdentity SubjectType = "identity"
)

// PermissionEntry grants per-action booleans on one resource.
type PermissionEntry struct {
	Resource  string `json:"resource"`
	CanCreate bool   `json:"can_create"`
	CanRead   bool   `json:"can_read"`
	CanUpdate bool   `json:"can_update"`
	CanDelete bool   `json:"can_delete"`
}

// Allows returns the specific boolean for the action.
func (e PermissionEntry) Allows(action Action) bool {
	switch action {
	case ActionCreate:
		return e.CanCreate
	case ActionRead:
		return e.CanRead
	case ActionUpdate:
		return e.CanUpdate
	case ActionDelete:
		return e.CanDelete
	}
	return false
}

// PermissionSet is an identity's effective permissions keyed by resource.
// A missing resource denies every action on it.
type PermissionSet map[string]PermissionEntry

// Allows is fail-closed: absent entry or unknown resource means deny.
func (s PermissionSet) Allows(action Action, resource string) bool {
	entry, ok := s[resource]
	if !ok {
		return false
	}
	return entry.Allows(action)
}

// DefaultEntries returns one deny-all entry per enumerated resource,
// preserving the invariant that every resource has exactly one entry.
func DefaultEntries() []PermissionEntry {
	entries := make([]PermissionEntry, len(Resources))
	for i, r := range Resources {
		entries[i] = PermissionEntry{Resource: r}
	}
	return entries
}
