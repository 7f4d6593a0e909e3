package auth

import (
	"context"
	"time"
)

// AccountStore describes persistence for login identities.
type AccountStore interface {
	Create(ctx context.Context, account *Account) error
	Find(ctx context.Context, id string) (*Account, error)
	FindByUsername(ctx context.Context, username string) (*Account, error)
	List(ctx context.Context, q AccountQuery) ([]*Account, int, error)
	Update(ctx context.Context, id string, upd AccountUpdate) (*Account, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}
