// Package questengine wires the activity/quest engine together: the state
// store, the daily ledger, the quest engine, the profile store boundary
// and the background processes that keep them current.
package questengine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/studyquestapp/studyquest/questengine/activity"
	"github.com/studyquestapp/studyquest/questengine/archive"
	"github.com/studyquestapp/studyquest/questengine/database"
	"github.com/studyquestapp/studyquest/questengine/notify"
	"github.com/studyquestapp/studyquest/questengine/profile"
	"github.com/studyquestapp/studyquest/questengine/quest"
	"github.com/studyquestapp/studyquest/questengine/store"
	"github.com/studyquestapp/studyquest/questengine/utils"
)

func New(cfg Config, version string, commit string) *App {
	return &App{
		Cfg:       cfg,
		Version:   version,
		Commit:    commit,
		Processes: utils.NewBackgroundProcessManager(),
	}
}

type App struct {
	Cfg       Config
	Version   string
	Commit    string
	DB        *database.DB
	Store     *store.Store
	Tracker   *activity.Tracker
	Quests    *quest.Engine
	Profiles  profile.Repository
	Notifier  notify.Notifier
	Archiver  *archive.Exporter
	Processes *utils.BackgroundProcessManager
}

// Setup builds the engine components. The database (a.DB) and notifier may
// be set by the caller beforehand; missing ones fall back to the in-memory
// profile store and the log notifier.
func (a *App) Setup(ctx context.Context) error {
	st, err := store.Open(filepath.Join(a.Cfg.Engine.DataDir, "state.json"))
	if err != nil {
		return err
	}
	a.Store = st

	if a.Notifier == nil {
		a.Notifier = notify.NewLog()
	}

	if a.Profiles == nil {
		if a.DB != nil && !a.Cfg.Engine.UseMemoryStore {
			a.Profiles = profile.NewPostgresRepository(a.DB.BunDB(),
				time.Duration(a.Cfg.Engine.BalanceCacheSec)*time.Second)
		} else {
			a.Profiles = profile.NewMemoryRepository()
		}
	}

	if err := a.ensureProfile(ctx); err != nil {
		return err
	}

	catalog, err := a.buildCatalog()
	if err != nil {
		return err
	}

	a.Tracker = activity.NewTracker(st, activity.LocalClock())
	a.Quests = quest.NewEngine(st, a.Tracker, catalog, a.Profiles, a.Notifier, quest.Config{
		UserID:        a.Cfg.Engine.UserID,
		SelectionSize: a.Cfg.Engine.SelectionSize,
		DailyBonus:    a.Cfg.Engine.DailyBonus,
	})

	if a.Cfg.Spaces.Enabled {
		exporter, err := archive.NewExporter(ctx,
			a.Cfg.Spaces.Key,
			a.Cfg.Spaces.Secret,
			a.Cfg.Spaces.Region,
			a.Cfg.Spaces.Bucket,
			a.Cfg.Spaces.Endpoint,
			a.Cfg.Spaces.Prefix,
		)
		if err != nil {
			return err
		}
		a.Archiver = exporter
	}

	return nil
}

// ensureProfile creates the engine user's profile row on first run, so
// reward claims have a balance to credit.
func (a *App) ensureProfile(ctx context.Context) error {
	userID := a.Cfg.Engine.UserID
	if _, err := a.Profiles.Get(ctx, userID); err == nil {
		return nil
	}

	username := a.Cfg.Engine.Username
	if username == "" {
		username = userID
	}
	if err := a.Profiles.Create(ctx, &profile.Profile{UserID: userID, Username: username}); err != nil {
		return fmt.Errorf("failed to create profile for %s: %w", userID, err)
	}

	slog.Info("Created profile",
		slog.String("type", "db"),
		slog.String("user_id", userID),
		slog.String("username", username))
	return nil
}

// buildCatalog returns the configured quest pool, or the built-in one when
// the config has no [[quests]] entries.
func (a *App) buildCatalog() (*quest.Catalog, error) {
	if len(a.Cfg.Quests) == 0 {
		return quest.DefaultCatalog(), nil
	}

	templates := make([]quest.Template, 0, len(a.Cfg.Quests))
	for _, qc := range a.Cfg.Quests {
		kind := activity.Kind(qc.Action)
		if !kind.Valid() {
			return nil, fmt.Errorf("quest %q: unknown action %q", qc.ID, qc.Action)
		}
		if qc.ID == "" || qc.Target <= 0 {
			return nil, fmt.Errorf("quest %q: id and a positive target are required", qc.ID)
		}
		templates = append(templates, quest.Template{
			ID:           qc.ID,
			Label:        qc.Label,
			RewardPoints: qc.Reward,
			Action:       kind,
			Target:       qc.Target,
		})
	}
	return quest.NewCatalog(templates), nil
}

// Status is the snapshot the embedding surface renders: the user's
// profile, today's ledger and today's quest set.
type Status struct {
	Profile *profile.Profile
	Ledger  activity.Ledger
	Quests  quest.DailySet
}

func (a *App) Status(ctx context.Context) (Status, error) {
	p, err := a.Profiles.Get(ctx, a.Cfg.Engine.UserID)
	if err != nil {
		return Status{}, fmt.Errorf("failed to load profile: %w", err)
	}
	return Status{
		Profile: p,
		Ledger:  a.Tracker.Stats(),
		Quests:  a.Quests.TodaysQuests(ctx),
	}, nil
}

// Leaderboard returns the highest reward balances.
func (a *App) Leaderboard(ctx context.Context, limit int) ([]*profile.Profile, error) {
	return a.Profiles.TopBalances(ctx, limit)
}

// Start subscribes the quest evaluator and launches the rollover ticker
// and the cross-process store watcher.
func (a *App) Start(ctx context.Context) {
	a.Quests.Start()

	// Prime today's state so the first tick has something to work with.
	a.Quests.TodaysQuests(ctx)

	if status, err := a.Status(ctx); err == nil {
		slog.Info("Engine ready",
			slog.String("user_id", a.Cfg.Engine.UserID),
			slog.Int64("balance", status.Profile.RewardBalance),
			slog.Int("quests", len(status.Quests.Quests)))
	}

	a.Processes.StartTicker("rollover-check",
		"detects wall-clock date changes",
		time.Duration(a.Cfg.Engine.RolloverSecs)*time.Second,
		func() { a.checkRollover(context.Background()) })

	a.Processes.StartProcess("store-watcher",
		"observes state writes from other processes",
		func(ctx context.Context) {
			a.Store.Watch(ctx, time.Duration(a.Cfg.Engine.StoreWatchSecs)*time.Second)
		})
}

// OnBecameActive is the became-active hook: the embedding surface calls it
// when the user returns, since timers alone can lag a suspended process.
func (a *App) OnBecameActive(ctx context.Context) {
	a.checkRollover(ctx)
	a.Store.Poll()
}

// checkRollover archives the outgoing day when the date has changed, then
// lets the tracker and quest engine roll forward.
func (a *App) checkRollover(ctx context.Context) {
	today := time.Now().Format(activity.DateFormat)

	if ledger, ok := a.Tracker.Peek(); ok && ledger.Date != "" && ledger.Date != today {
		if a.Archiver != nil {
			set, _ := a.Quests.PeekSet()
			if err := a.Archiver.ExportDay(ctx, a.Cfg.Engine.UserID, ledger.Date, ledger, set); err != nil {
				slog.Error("Failed to export daily snapshot",
					slog.String("type", "quest"),
					slog.String("date", ledger.Date),
					slog.Any("error", err))
			}
		}
	}

	a.Tracker.CheckRollover()
	a.Quests.TodaysQuests(ctx)
}

// Close tears down subscriptions and background processes.
func (a *App) Close() {
	a.Quests.Stop()
	a.Processes.Shutdown(5 * time.Second)
	if a.DB != nil {
		a.DB.Close()
	}
}
