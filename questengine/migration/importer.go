// Package migration imports user data from the platform's previous
// MongoDB deployment into the Postgres profile store. One-shot, run with
// the -import-legacy flag.
package migration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/uptrace/bun"

	"github.com/studyquestapp/studyquest/questengine/database"
	"github.com/studyquestapp/studyquest/questengine/profile"
)

const defaultBatchSize = 500

// legacyUser mirrors the old deployment's user document.
type legacyUser struct {
	UserID   string `bson:"user_id"`
	Username string `bson:"username"`
	Points   int64  `bson:"points"`
}

// legacyQuestRecord mirrors the old deployment's claimed-quest document.
type legacyQuestRecord struct {
	UserID    string    `bson:"user_id"`
	QuestID   string    `bson:"quest_id"`
	Date      string    `bson:"date"`
	Reward    int64     `bson:"reward"`
	ClaimedAt time.Time `bson:"claimed_at"`
}

type Stats struct {
	Profiles  int
	Archives  int
	Skipped   int
	StartTime time.Time
}

type Importer struct {
	pg        *bun.DB
	mongoDB   *mongo.Database
	batchSize int

	mu    sync.Mutex
	stats Stats
}

func (im *Importer) addStats(profiles, archives, skipped int) {
	im.mu.Lock()
	im.stats.Profiles += profiles
	im.stats.Archives += archives
	im.stats.Skipped += skipped
	im.mu.Unlock()
}

func NewImporter(pg *bun.DB, mongoDB *mongo.Database) *Importer {
	return &Importer{
		pg:        pg,
		mongoDB:   mongoDB,
		batchSize: defaultBatchSize,
		stats:     Stats{StartTime: time.Now()},
	}
}

// Connect opens the legacy Mongo deployment and returns an Importer bound
// to it. The caller owns the returned close func.
func Connect(ctx context.Context, pg *bun.DB, uri, dbName string) (*Importer, func(), error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to legacy mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("legacy mongo unreachable: %w", err)
	}

	closeFn := func() {
		if err := client.Disconnect(context.Background()); err != nil {
			slog.Warn("Failed to disconnect legacy mongo",
				slog.String("type", "db"),
				slog.Any("error", err))
		}
	}
	return NewImporter(pg, client.Database(dbName)), closeFn, nil
}

// Run imports profiles and the claimed-quest archive. The two collections
// are independent, so they import in parallel.
func (im *Importer) Run(ctx context.Context) (Stats, error) {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return im.importProfiles(ctx) })
	g.Go(func() error { return im.importQuestArchive(ctx) })

	if err := g.Wait(); err != nil {
		return im.stats, err
	}

	slog.Info("Legacy import finished",
		slog.String("type", "db"),
		slog.Int("profiles", im.stats.Profiles),
		slog.Int("archives", im.stats.Archives),
		slog.Int("skipped", im.stats.Skipped),
		slog.Duration("took", time.Since(im.stats.StartTime)))
	return im.stats, nil
}

func (im *Importer) importProfiles(ctx context.Context) error {
	cursor, err := im.mongoDB.Collection("users").Find(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("failed to query legacy users: %w", err)
	}
	defer cursor.Close(ctx)

	batch := make([]*profile.Profile, 0, im.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		_, err := im.pg.NewInsert().
			Model(&batch).
			On("CONFLICT (user_id) DO UPDATE").
			Set("reward_balance = EXCLUDED.reward_balance").
			Set("username = EXCLUDED.username").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to upsert profile batch: %w", err)
		}
		im.addStats(len(batch), 0, 0)
		batch = batch[:0]
		return nil
	}

	now := time.Now()
	for cursor.Next(ctx) {
		var user legacyUser
		if err := cursor.Decode(&user); err != nil {
			slog.Warn("Skipping undecodable legacy user",
				slog.String("type", "db"),
				slog.Any("error", err))
			im.addStats(0, 0, 1)
			continue
		}
		if user.UserID == "" {
			im.addStats(0, 0, 1)
			continue
		}

		batch = append(batch, &profile.Profile{
			UserID:        user.UserID,
			Username:      user.Username,
			RewardBalance: user.Points,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if len(batch) >= im.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("legacy user cursor failed: %w", err)
	}
	return flush()
}

func (im *Importer) importQuestArchive(ctx context.Context) error {
	cursor, err := im.mongoDB.Collection("userquests").Find(ctx, bson.D{{Key: "claimed", Value: true}})
	if err != nil {
		return fmt.Errorf("failed to query legacy quests: %w", err)
	}
	defer cursor.Close(ctx)

	batch := make([]*database.QuestArchive, 0, im.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		_, err := im.pg.NewInsert().
			Model(&batch).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert archive batch: %w", err)
		}
		im.addStats(0, len(batch), 0)
		batch = batch[:0]
		return nil
	}

	now := time.Now()
	for cursor.Next(ctx) {
		var rec legacyQuestRecord
		if err := cursor.Decode(&rec); err != nil {
			im.addStats(0, 0, 1)
			continue
		}
		if rec.UserID == "" || rec.QuestID == "" {
			im.addStats(0, 0, 1)
			continue
		}

		batch = append(batch, &database.QuestArchive{
			UserID:       rec.UserID,
			QuestID:      rec.QuestID,
			Date:         rec.Date,
			RewardPoints: rec.Reward,
			ClaimedAt:    rec.ClaimedAt,
			CreatedAt:    now,
		})
		if len(batch) >= im.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("legacy quest cursor failed: %w", err)
	}
	return flush()
}
