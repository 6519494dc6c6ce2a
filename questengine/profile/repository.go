// Package profile is the boundary to the system that owns user profiles
// and their reward balance. The quest engine only ever appends points; it
// never assumes a cached balance without re-reading from the owner.
package profile

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:p"`

	ID            int64     `bun:"id,pk,autoincrement"`
	UserID        string    `bun:"user_id,notnull,unique"`
	Username      string    `bun:"username,notnull"`
	RewardBalance int64     `bun:"reward_balance,notnull,default:0"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

type Repository interface {
	Create(ctx context.Context, profile *Profile) error
	Get(ctx context.Context, userID string) (*Profile, error)
	Balance(ctx context.Context, userID string) (int64, error)
	// AddPoints increments the user's reward balance by amount and returns
	// the new balance.
	AddPoints(ctx context.Context, userID string, amount int64) (int64, error)
	TopBalances(ctx context.Context, limit int) ([]*Profile, error)
}
