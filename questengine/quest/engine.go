// Package quest derives daily quest state from the activity ledger and
// processes one-time reward claims against the profile system.
package quest

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/studyquestapp/studyquest/questengine/activity"
	"github.com/studyquestapp/studyquest/questengine/logger"
	"github.com/studyquestapp/studyquest/questengine/notify"
	"github.com/studyquestapp/studyquest/questengine/profile"
	"github.com/studyquestapp/studyquest/questengine/store"
)

const questsKey = "daily_quests"

const (
	defaultSelectionSize = 3
	defaultDailyBonus    = 100
)

// Quest is one entry of the day's active set.
type Quest struct {
	ID           string        `json:"id"`
	Label        string        `json:"label"`
	RewardPoints int64         `json:"reward_points"`
	Action       activity.Kind `json:"action_kind"`
	Target       int           `json:"target"`
	Completed    bool          `json:"completed"`
	Claimed      bool          `json:"claimed"`
}

// DailySet is the persisted quest selection for one calendar day.
type DailySet struct {
	Date   string  `json:"date"`
	Quests []Quest `json:"quests"`
}

// AllClaimed reports whether every quest in the set has been claimed.
func (s DailySet) AllClaimed() bool {
	if len(s.Quests) == 0 {
		return false
	}
	for _, q := range s.Quests {
		if !q.Claimed {
			return false
		}
	}
	return true
}

// ClaimResult describes the outcome of a claim attempt. A failed
// precondition is not an error; Claimed is simply false.
type ClaimResult struct {
	Claimed        bool
	QuestID        string
	Points         int64
	NewBalance     int64
	BonusAwarded   bool
	BonusPoints    int64
	BalancePending bool
	Message        string
}

// Config carries the per-user engine settings.
type Config struct {
	UserID        string
	SelectionSize int
	DailyBonus    int64
	Clock         activity.Clock
	Rand          *rand.Rand
}

// Engine owns the daily quest lifecycle for one user: selection,
// completion evaluation on ledger changes, and reward claims.
//
// Like the activity tracker it keeps no state outside the store, so
// instances in separate processes converge through the store watcher.
type Engine struct {
	store    *store.Store
	tracker  *activity.Tracker
	catalog  *Catalog
	profiles profile.Repository
	notifier notify.Notifier
	cfg      Config
	unsub    func()

	// setMu serializes read-modify-writes of the quest set. Claims, the
	// evaluator and selection run on different goroutines (callers, the
	// store watcher, the rollover ticker); an unserialized evaluator
	// could clobber a concurrent claim with its stale copy.
	setMu sync.Mutex
}

func NewEngine(st *store.Store, tracker *activity.Tracker, catalog *Catalog, profiles profile.Repository, notifier notify.Notifier, cfg Config) *Engine {
	if cfg.SelectionSize <= 0 {
		cfg.SelectionSize = defaultSelectionSize
	}
	if cfg.DailyBonus <= 0 {
		cfg.DailyBonus = defaultDailyBonus
	}
	if cfg.Clock == nil {
		cfg.Clock = activity.LocalClock()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		store:    st,
		tracker:  tracker,
		catalog:  catalog,
		profiles: profiles,
		notifier: notifier,
		cfg:      cfg,
	}
}

// Start subscribes the completion evaluator to ledger changes.
func (e *Engine) Start() {
	e.unsub = e.tracker.Subscribe(func() {
		e.Evaluate(context.Background())
	})
}

// Stop removes the ledger subscription.
func (e *Engine) Stop() {
	if e.unsub != nil {
		e.unsub()
		e.unsub = nil
	}
}

// TodaysQuests returns the active quest set for today, drawing a new
// selection on first access after rollover. Repeated calls within the same
// day return the persisted set untouched.
func (e *Engine) TodaysQuests(ctx context.Context) DailySet {
	today := e.cfg.Clock.Today()

	e.setMu.Lock()
	var set DailySet
	fresh := false
	if !e.store.Read(questsKey, &set) || set.Date != today || len(set.Quests) == 0 {
		set = e.selectQuests(today)
		if err := e.store.Write(questsKey, set); err != nil {
			e.setMu.Unlock()
			slog.Error("Failed to persist daily quest set",
				slog.String("type", "quest"),
				slog.String("user_id", e.cfg.UserID),
				slog.Any("error", err))
			return set
		}
		fresh = true
	}
	e.setMu.Unlock()

	if fresh {
		slog.Info("Selected daily quests",
			slog.String("type", "quest"),
			slog.String("user_id", e.cfg.UserID),
			slog.String("date", today),
			slog.Int("count", len(set.Quests)))
	}

	e.Evaluate(ctx)
	e.store.Read(questsKey, &set)
	return set
}

func (e *Engine) selectQuests(today string) DailySet {
	templates := e.catalog.Templates()
	e.cfg.Rand.Shuffle(len(templates), func(i, j int) {
		templates[i], templates[j] = templates[j], templates[i]
	})

	n := e.cfg.SelectionSize
	if n > len(templates) {
		n = len(templates)
	}

	quests := make([]Quest, 0, n)
	for _, t := range templates[:n] {
		quests = append(quests, Quest{
			ID:           t.ID,
			Label:        t.Label,
			RewardPoints: t.RewardPoints,
			Action:       t.Action,
			Target:       t.Target,
		})
	}
	return DailySet{Date: today, Quests: quests}
}

// PeekSet returns the stored quest set as-is, with no staleness check.
// Used by the snapshot archiver before rollover replaces the set.
func (e *Engine) PeekSet() (DailySet, bool) {
	var set DailySet
	ok := e.store.Read(questsKey, &set)
	return set, ok
}

// Evaluate recomputes each quest's completed flag from the ledger.
// Completion is sticky; counts are monotonic within a day, so the
// comparison only runs forward. The set is persisted only when a flag
// actually changed.
func (e *Engine) Evaluate(ctx context.Context) {
	// Stats can trigger a rollover write that re-enters Evaluate through
	// the ledger subscription, so it must complete before setMu is taken.
	ledger := e.tracker.Stats()
	today := e.cfg.Clock.Today()

	e.setMu.Lock()
	var set DailySet
	if !e.store.Read(questsKey, &set) || set.Date != today || len(set.Quests) == 0 {
		e.setMu.Unlock()
		return
	}

	var completed []Quest
	for i := range set.Quests {
		q := &set.Quests[i]
		if q.Completed {
			continue
		}
		if ledger.Count(q.Action) >= q.Target {
			q.Completed = true
			completed = append(completed, *q)
		}
	}

	if len(completed) == 0 {
		e.setMu.Unlock()
		return
	}

	if err := e.store.Write(questsKey, set); err != nil {
		e.setMu.Unlock()
		slog.Error("Failed to persist quest completion",
			slog.String("type", "quest"),
			slog.String("user_id", e.cfg.UserID),
			slog.Any("error", err))
		return
	}
	e.setMu.Unlock()

	for _, q := range completed {
		slog.Info("Quest completed",
			slog.String("type", "quest"),
			slog.String("user_id", e.cfg.UserID),
			slog.String("quest_id", q.ID))
		e.notifier.Notify(ctx, e.cfg.UserID, notify.KindQuestCompleted,
			fmt.Sprintf("Quest complete: %s! Claim your %d points", q.Label, q.RewardPoints))
	}
}

// ClaimReward applies a one-time reward claim for questID. Unknown ids,
// incomplete quests and repeated claims are silent no-ops. The claimed
// flag is flipped locally first; a failed balance write leaves the quest
// claimed and is logged for reconciliation.
func (e *Engine) ClaimReward(ctx context.Context, questID string) (ClaimResult, error) {
	e.setMu.Lock()
	defer e.setMu.Unlock()

	today := e.cfg.Clock.Today()

	var set DailySet
	if !e.store.Read(questsKey, &set) || set.Date != today || len(set.Quests) == 0 {
		return ClaimResult{QuestID: questID, Message: "No quests for today"}, nil
	}

	idx := -1
	for i, q := range set.Quests {
		if q.ID == questID {
			idx = i
			break
		}
	}
	if idx < 0 {
		slog.Debug("Claim for unknown quest",
			slog.String("type", "quest"),
			slog.String("user_id", e.cfg.UserID),
			slog.String("quest_id", questID))
		return ClaimResult{QuestID: questID, Message: "Unknown quest"}, nil
	}

	q := set.Quests[idx]
	if !q.Completed || q.Claimed {
		slog.Debug("Claim preconditions not met",
			slog.String("type", "quest"),
			slog.String("user_id", e.cfg.UserID),
			slog.String("quest_id", questID),
			slog.Bool("completed", q.Completed),
			slog.Bool("claimed", q.Claimed))
		return ClaimResult{QuestID: questID, Message: "Nothing to claim"}, nil
	}

	set.Quests[idx].Claimed = true
	if err := e.store.Write(questsKey, set); err != nil {
		return ClaimResult{QuestID: questID}, fmt.Errorf("failed to persist claim: %w", err)
	}

	result := ClaimResult{
		Claimed: true,
		QuestID: questID,
		Points:  q.RewardPoints,
	}

	balance, err := e.profiles.AddPoints(ctx, e.cfg.UserID, q.RewardPoints)
	logger.LogClaim(e.cfg.UserID, questID, q.RewardPoints, err)
	if err != nil {
		// Claimed but unpaid; left for reconciliation rather than rolled
		// back, so the user cannot double-claim on retry.
		result.BalancePending = true
	} else {
		result.NewBalance = balance
		e.notifier.Notify(ctx, e.cfg.UserID, notify.KindRewardClaimed,
			fmt.Sprintf("You earned %d points for %q!", q.RewardPoints, q.Label))
	}

	if set.AllClaimed() {
		result.BonusAwarded = true
		result.BonusPoints = e.cfg.DailyBonus

		balance, err := e.profiles.AddPoints(ctx, e.cfg.UserID, e.cfg.DailyBonus)
		if err != nil {
			slog.Error("Failed to award daily bonus",
				slog.String("type", "quest"),
				slog.String("user_id", e.cfg.UserID),
				slog.Any("error", err))
			result.BalancePending = true
		} else {
			result.NewBalance = balance
			slog.Info("Daily bonus awarded",
				slog.String("type", "quest"),
				slog.String("user_id", e.cfg.UserID),
				slog.Int64("bonus", e.cfg.DailyBonus))
			e.notifier.Notify(ctx, e.cfg.UserID, notify.KindDailyBonus,
				fmt.Sprintf("All quests done! Daily bonus: %d points", e.cfg.DailyBonus))
		}
	}

	return result, nil
}
