package rbac

import "context"

// Repository defines the identity-store reads and writes the permission
// layer needs. Relations are plain identifiers resolved by explicit lookups.
type Repository interface {
	GetRole(ctx context.Context, id int64) (Role, error)
	GetIdentityRole(ctx context.Context, identityID int64) (Role, error)
	CountMembersOfRole(ctx context.Context, roleID int64) (int64, error)
	ListRoleMemberIDs(ctx context.Context, roleID int64) ([]int64, error)
	ListPermissionEntries(ctx context.Context, subjectType SubjectType, subjectID int64) ([]PermissionEntry, error)
	SavePermissionEntries(ctx context.Context, subjectType SubjectType, subjectID int64, entries []PermissionEntry) error
}
