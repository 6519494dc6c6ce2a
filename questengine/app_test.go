package questengine

import (
	"context"
	"testing"
	"time"

	"github.com/studyquestapp/studyquest/questengine/activity"
	"github.com/studyquestapp/studyquest/questengine/profile"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	app := New(Config{
		Engine: EngineConfig{
			UserID:         "user-1",
			Username:       "sam",
			DataDir:        t.TempDir(),
			UseMemoryStore: true,
		},
	}, "test", "none")
	if err := app.Setup(context.Background()); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	return app
}

func TestSetupCreatesProfile(t *testing.T) {
	app := newTestApp(t)

	p, err := app.Profiles.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Get() after Setup error = %v", err)
	}
	if p.Username != "sam" {
		t.Errorf("p.Username = %q, want %q", p.Username, "sam")
	}
	if p.RewardBalance != 0 {
		t.Errorf("p.RewardBalance = %d, want 0", p.RewardBalance)
	}

	// A second run against an existing profile is a no-op.
	if err := app.ensureProfile(context.Background()); err != nil {
		t.Errorf("ensureProfile() on existing profile error = %v", err)
	}
}

func TestSetupDefaultsUsernameToUserID(t *testing.T) {
	app := New(Config{
		Engine: EngineConfig{
			UserID:         "user-9",
			DataDir:        t.TempDir(),
			UseMemoryStore: true,
		},
	}, "test", "none")
	if err := app.Setup(context.Background()); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	p, err := app.Profiles.Get(context.Background(), "user-9")
	if err != nil {
		t.Fatalf("Get() after Setup error = %v", err)
	}
	if p.Username != "user-9" {
		t.Errorf("p.Username = %q, want %q", p.Username, "user-9")
	}
}

func TestClaimCreditsBalanceOnFreshRun(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	set := app.Quests.TodaysQuests(ctx)
	if len(set.Quests) == 0 {
		t.Fatal("TodaysQuests() returned no quests")
	}

	var want int64
	for _, q := range set.Quests {
		app.Tracker.Track(q.Action, q.Target)

		result, err := app.Quests.ClaimReward(ctx, q.ID)
		if err != nil {
			t.Fatalf("ClaimReward(%q) error = %v", q.ID, err)
		}
		if !result.Claimed {
			t.Fatalf("ClaimReward(%q).Claimed = false", q.ID)
		}
		if result.BalancePending {
			t.Fatalf("ClaimReward(%q) left the balance pending on a fresh run", q.ID)
		}
		want += q.RewardPoints
	}
	want += 100 // daily bonus

	balance, err := app.Profiles.Balance(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if balance != want {
		t.Errorf("balance = %d, want %d", balance, want)
	}
}

func TestStatus(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	status, err := app.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.Profile.UserID != "user-1" {
		t.Errorf("status.Profile.UserID = %q, want %q", status.Profile.UserID, "user-1")
	}
	if len(status.Quests.Quests) != 3 {
		t.Errorf("len(status.Quests.Quests) = %d, want 3", len(status.Quests.Quests))
	}

	today := time.Now().Format(activity.DateFormat)
	if status.Ledger.Date != today {
		t.Errorf("status.Ledger.Date = %q, want %q", status.Ledger.Date, today)
	}
}

func TestLeaderboard(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	for _, u := range []struct {
		id     string
		points int64
	}{
		{id: "user-2", points: 300},
		{id: "user-3", points: 150},
	} {
		if err := app.Profiles.Create(ctx, &profile.Profile{UserID: u.id, Username: u.id}); err != nil {
			t.Fatal(err)
		}
		if _, err := app.Profiles.AddPoints(ctx, u.id, u.points); err != nil {
			t.Fatal(err)
		}
	}

	top, err := app.Leaderboard(ctx, 2)
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("len(top) = %d, want 2", len(top))
	}
	if top[0].UserID != "user-2" || top[1].UserID != "user-3" {
		t.Errorf("leaderboard order = [%s %s], want [user-2 user-3]", top[0].UserID, top[1].UserID)
	}
}
