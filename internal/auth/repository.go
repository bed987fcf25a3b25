package auth

import "context"

// Repository defines persistence operations for the identity core. The
// relational store is the single source of truth; cache entries are derived
// projections.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	FindByID(ctx context.Context, id int64) (*Identity, error)
	CreateLoginSession(ctx context.Context, s Session) error
	GetLoginSession(ctx context.Context, id string) (*Session, error)
	DeleteLoginSessionsByIDs(ctx context.Context, ids []string) (int64, error)
	ListLoginSessionsByIdentity(ctx context.Context, identityID int64) ([]Session, error)
}
