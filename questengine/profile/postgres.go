package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/uptrace/bun"
)

const balanceCacheSize = 1024

type cachedBalance struct {
	balance   int64
	timestamp time.Time
}

type postgresRepository struct {
	db          *bun.DB
	cache       *lru.Cache
	cacheExpiry time.Duration
}

// NewPostgresRepository returns a Repository backed by the platform's
// Postgres profile store. Balance reads are served from an LRU cache for
// cacheExpiry; writes go straight through and refresh the cache.
func NewPostgresRepository(db *bun.DB, cacheExpiry time.Duration) Repository {
	cache, _ := lru.New(balanceCacheSize)
	return &postgresRepository{
		db:          db,
		cache:       cache,
		cacheExpiry: cacheExpiry,
	}
}

func (r *postgresRepository) Create(ctx context.Context, profile *Profile) error {
	profile.CreatedAt = time.Now()
	profile.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().Model(profile).Exec(ctx)
	return err
}

func (r *postgresRepository) Get(ctx context.Context, userID string) (*Profile, error) {
	profile := new(Profile)
	err := r.db.NewSelect().
		Model(profile).
		Where("user_id = ?", userID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			slog.Warn("Profile not found",
				slog.String("type", "db"),
				slog.String("operation", "Get"),
				slog.String("user_id", userID))
		} else {
			slog.Error("Database error when getting profile",
				slog.String("type", "db"),
				slog.String("operation", "Get"),
				slog.String("user_id", userID),
				slog.Any("error", err))
		}
		return nil, err
	}

	return profile, nil
}

func (r *postgresRepository) Balance(ctx context.Context, userID string) (int64, error) {
	if cached, ok := r.cache.Get(userID); ok {
		entry := cached.(cachedBalance)
		if time.Since(entry.timestamp) < r.cacheExpiry {
			return entry.balance, nil
		}
	}

	var balance int64
	err := r.db.NewSelect().
		Model((*Profile)(nil)).
		Column("reward_balance").
		Where("user_id = ?", userID).
		Scan(ctx, &balance)
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}

	r.cache.Add(userID, cachedBalance{balance: balance, timestamp: time.Now()})
	return balance, nil
}

func (r *postgresRepository) AddPoints(ctx context.Context, userID string, amount int64) (int64, error) {
	res, err := r.db.NewUpdate().
		Model((*Profile)(nil)).
		Set("reward_balance = reward_balance + ?", amount).
		Set("updated_at = ?", time.Now()).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to add points: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, fmt.Errorf("no profile for user %s", userID)
	}

	var balance int64
	err = r.db.NewSelect().
		Model((*Profile)(nil)).
		Column("reward_balance").
		Where("user_id = ?", userID).
		Scan(ctx, &balance)
	if err != nil {
		return 0, fmt.Errorf("failed to read balance after update: %w", err)
	}

	r.cache.Add(userID, cachedBalance{balance: balance, timestamp: time.Now()})
	return balance, nil
}

func (r *postgresRepository) TopBalances(ctx context.Context, limit int) ([]*Profile, error) {
	var profiles []*Profile
	err := r.db.NewSelect().
		Model(&profiles).
		OrderExpr("reward_balance DESC").
		Limit(limit).
		Scan(ctx)
	return profiles, err
}
