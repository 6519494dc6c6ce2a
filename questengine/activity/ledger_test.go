package activity

import (
	"path/filepath"
	"testing"

	"github.com/studyquestapp/studyquest/questengine/store"
)

type fakeClock struct {
	day string
}

func (c *fakeClock) Today() string { return c.day }

func newTestTracker(t *testing.T) (*Tracker, *fakeClock) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}
	clock := &fakeClock{day: "2024-01-01"}
	return NewTracker(st, clock), clock
}

func TestTracker_FreshLedgerStartsAtZero(t *testing.T) {
	tracker, _ := newTestTracker(t)

	ledger := tracker.Stats()
	if ledger.Date != "2024-01-01" {
		t.Errorf("Stats().Date = %q, want %q", ledger.Date, "2024-01-01")
	}
	for _, kind := range Kinds {
		if got := ledger.Count(kind); got != 0 {
			t.Errorf("Count(%s) = %d, want 0", kind, got)
		}
	}
}

func TestTracker_TrackIncrements(t *testing.T) {
	tracker, _ := newTestTracker(t)

	tracker.Track(KindCreateNote, 1)
	tracker.Track(KindCreateNote, 2)
	tracker.Track(KindUpvoteNote, 1)

	ledger := tracker.Stats()
	if got := ledger.Count(KindCreateNote); got != 3 {
		t.Errorf("Count(create_note) = %d, want 3", got)
	}
	if got := ledger.Count(KindUpvoteNote); got != 1 {
		t.Errorf("Count(upvote_note) = %d, want 1", got)
	}
}

func TestTracker_IgnoresInvalidTracks(t *testing.T) {
	tracker, _ := newTestTracker(t)

	tracker.Track(Kind("no_such_action"), 1)
	tracker.Track(KindCreateNote, 0)
	tracker.Track(KindCreateNote, -2)

	ledger := tracker.Stats()
	for kind, count := range ledger.Actions {
		if count != 0 {
			t.Errorf("Count(%s) = %d, want 0", kind, count)
		}
	}
}

func TestTracker_RolloverResetsCounts(t *testing.T) {
	tracker, clock := newTestTracker(t)

	tracker.Track(KindCreateNote, 3)
	if got := tracker.Stats().Count(KindCreateNote); got != 3 {
		t.Fatalf("Count(create_note) = %d, want 3", got)
	}

	clock.day = "2024-01-02"

	ledger := tracker.Stats()
	if ledger.Date != "2024-01-02" {
		t.Errorf("Stats().Date = %q, want %q", ledger.Date, "2024-01-02")
	}
	if got := ledger.Count(KindCreateNote); got != 0 {
		t.Errorf("Count(create_note) after rollover = %d, want 0", got)
	}
}

func TestTracker_CheckRolloverReplacesStaleLedger(t *testing.T) {
	tracker, clock := newTestTracker(t)

	tracker.Track(KindShareLink, 1)
	clock.day = "2024-01-02"
	tracker.CheckRollover()

	ledger, ok := tracker.Peek()
	if !ok {
		t.Fatal("Peek() = false, want true")
	}
	if ledger.Date != "2024-01-02" || ledger.Count(KindShareLink) != 0 {
		t.Errorf("ledger after CheckRollover = %+v", ledger)
	}
}

func TestTracker_SubscribeFiresOnTrack(t *testing.T) {
	tracker, _ := newTestTracker(t)

	fired := 0
	unsub := tracker.Subscribe(func() { fired++ })
	defer unsub()

	tracker.Track(KindCommentNote, 1)
	if fired == 0 {
		t.Error("subscriber did not fire on Track")
	}
}

func TestTracker_PeekDoesNotRollOver(t *testing.T) {
	tracker, clock := newTestTracker(t)

	tracker.Track(KindCreateNote, 2)
	clock.day = "2024-01-02"

	ledger, ok := tracker.Peek()
	if !ok {
		t.Fatal("Peek() = false, want true")
	}
	if ledger.Date != "2024-01-01" || ledger.Count(KindCreateNote) != 2 {
		t.Errorf("Peek() = %+v, want yesterday's counts intact", ledger)
	}
}
