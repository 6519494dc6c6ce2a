// Package activity maintains the per-day counter map of user actions. The
// ledger is keyed by the local calendar date; a stored ledger from a past
// date is never trusted and is replaced by a zeroed one on the next access.
package activity

import (
	"log/slog"
	"time"

	"github.com/studyquestapp/studyquest/questengine/store"
)

const ledgerKey = "daily_activity"

// DateFormat is the calendar-day identifier used across the engine.
const DateFormat = "2006-01-02"

// Clock supplies the current local calendar date. Injected so tests can
// simulate midnight rollover.
type Clock interface {
	Today() string
}

type localClock struct{}

func (localClock) Today() string { return time.Now().Format(DateFormat) }

// LocalClock returns a Clock backed by the system wall clock.
func LocalClock() Clock { return localClock{} }

// Ledger is the persisted daily action-count map.
type Ledger struct {
	Date    string       `json:"date"`
	Actions map[Kind]int `json:"actions"`
}

func newLedger(date string) Ledger {
	actions := make(map[Kind]int, len(Kinds))
	for _, k := range Kinds {
		actions[k] = 0
	}
	return Ledger{Date: date, Actions: actions}
}

// Count returns the number of occurrences of kind recorded today.
func (l Ledger) Count(kind Kind) int {
	return l.Actions[kind]
}

// Tracker owns the current day's ledger. All reads run the rollover check
// first, so a caller never observes counts from a previous day.
//
// The tracker keeps no state of its own; every operation reads through the
// store. Calls are expected to be serialized by the owning event loop, and
// ledger subscribers may safely call back into the tracker.
type Tracker struct {
	store *store.Store
	clock Clock
}

func NewTracker(st *store.Store, clock Clock) *Tracker {
	if clock == nil {
		clock = LocalClock()
	}
	return &Tracker{store: st, clock: clock}
}

// Stats returns the current ledger, rolling over first if the stored date
// has passed.
func (t *Tracker) Stats() Ledger {
	return t.current()
}

// Track increments the count for kind by n and persists the ledger.
// Subscribers see the write before Track returns.
func (t *Tracker) Track(kind Kind, n int) {
	if !kind.Valid() || n <= 0 {
		slog.Debug("Ignoring invalid track call",
			slog.String("type", "activity"),
			slog.String("kind", string(kind)),
			slog.Int("count", n))
		return
	}

	ledger := t.current()
	ledger.Actions[kind] += n

	if err := t.store.Write(ledgerKey, ledger); err != nil {
		slog.Error("Failed to persist activity ledger",
			slog.String("type", "activity"),
			slog.String("kind", string(kind)),
			slog.Any("error", err))
		return
	}

	slog.Debug("Tracked action",
		slog.String("type", "activity"),
		slog.String("kind", string(kind)),
		slog.Int("count", ledger.Actions[kind]))
}

// Peek returns the stored ledger as-is, without the rollover check. The
// snapshot archiver uses it to capture the previous day before the ledger
// is replaced.
func (t *Tracker) Peek() (Ledger, bool) {
	var ledger Ledger
	ok := t.store.Read(ledgerKey, &ledger)
	return ledger, ok
}

// CheckRollover forces the stale-date check. Wired to the periodic ticker
// and any became-active hook, since crossing midnight is not observable as
// a discrete event.
func (t *Tracker) CheckRollover() {
	t.current()
}

// Subscribe registers fn to run whenever the ledger changes, including
// changes surfaced from other processes by the store watcher.
func (t *Tracker) Subscribe(fn func()) func() {
	return t.store.Subscribe(ledgerKey, fn)
}

// current returns today's ledger, replacing a stale or missing one with a
// zeroed ledger for today.
func (t *Tracker) current() Ledger {
	today := t.clock.Today()

	var ledger Ledger
	if t.store.Read(ledgerKey, &ledger) && ledger.Date == today && ledger.Actions != nil {
		return ledger
	}

	if ledger.Date != "" && ledger.Date != today {
		slog.Info("Activity ledger rolled over",
			slog.String("type", "activity"),
			slog.String("from", ledger.Date),
			slog.String("to", today))
	}

	fresh := newLedger(today)
	if err := t.store.Write(ledgerKey, fresh); err != nil {
		slog.Error("Failed to persist fresh ledger",
			slog.String("type", "activity"),
			slog.Any("error", err))
	}
	return fresh
}
