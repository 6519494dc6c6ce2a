package profile

import (
	"context"
	"testing"
)

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if _, err := repo.Get(ctx, "user-1"); err == nil {
		t.Error("Get() on missing profile error = nil, want error")
	}

	if err := repo.Create(ctx, &Profile{UserID: "user-1", Username: "sam"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, &Profile{UserID: "user-1", Username: "sam"}); err == nil {
		t.Error("Create() on duplicate user error = nil, want error")
	}

	p, err := repo.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.Username != "sam" || p.RewardBalance != 0 {
		t.Errorf("Get() = %+v, want username sam, balance 0", p)
	}
}

func TestMemoryRepository_TopBalances(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for _, u := range []struct {
		id     string
		points int64
	}{
		{id: "low", points: 10},
		{id: "high", points: 500},
		{id: "mid", points: 120},
	} {
		if err := repo.Create(ctx, &Profile{UserID: u.id, Username: u.id}); err != nil {
			t.Fatal(err)
		}
		if _, err := repo.AddPoints(ctx, u.id, u.points); err != nil {
			t.Fatal(err)
		}
	}

	top, err := repo.TopBalances(ctx, 2)
	if err != nil {
		t.Fatalf("TopBalances() error = %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("len(top) = %d, want 2", len(top))
	}
	if top[0].UserID != "high" || top[1].UserID != "mid" {
		t.Errorf("order = [%s %s], want [high mid]", top[0].UserID, top[1].UserID)
	}

	all, err := repo.TopBalances(ctx, 0)
	if err != nil {
		t.Fatalf("TopBalances() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(all) = %d, want 3", len(all))
	}
}
