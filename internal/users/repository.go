package users

import "context"

// RepositoryPort defines data access methods for identity administration.
type RepositoryPort interface {
	ListUsers(ctx context.Context, limit, offset int) ([]User, int, error)
	GetUser(ctx context.Context, id int64) (User, error)
	SetRole(ctx context.Context, id, roleID int64) error
	Deactivate(ctx context.Context, id int64) error
	SoftDelete(ctx context.Context, id int64) error
}
