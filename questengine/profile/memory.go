package profile

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryRepository struct {
	mu       sync.Mutex
	profiles map[string]*Profile
	nextID   int64
}

// NewMemoryRepository returns an in-memory Repository for development runs
// without a database.
func NewMemoryRepository() Repository {
	return &memoryRepository{profiles: make(map[string]*Profile)}
}

func (r *memoryRepository) Create(_ context.Context, profile *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[profile.UserID]; ok {
		return fmt.Errorf("profile already exists for user %s", profile.UserID)
	}

	r.nextID++
	profile.ID = r.nextID
	profile.CreatedAt = time.Now()
	profile.UpdatedAt = time.Now()
	copied := *profile
	r.profiles[profile.UserID] = &copied
	return nil
}

func (r *memoryRepository) Get(_ context.Context, userID string) (*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("no profile for user %s", userID)
	}
	copied := *p
	return &copied, nil
}

func (r *memoryRepository) Balance(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return 0, fmt.Errorf("no profile for user %s", userID)
	}
	return p.RewardBalance, nil
}

func (r *memoryRepository) AddPoints(_ context.Context, userID string, amount int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return 0, fmt.Errorf("no profile for user %s", userID)
	}
	p.RewardBalance += amount
	p.UpdatedAt = time.Now()
	return p.RewardBalance, nil
}

func (r *memoryRepository) TopBalances(_ context.Context, limit int) ([]*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	profiles := make([]*Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		copied := *p
		profiles = append(profiles, &copied)
	}
	for i := 0; i < len(profiles); i++ {
		for j := i + 1; j < len(profiles); j++ {
			if profiles[j].RewardBalance > profiles[i].RewardBalance {
				profiles[i], profiles[j] = profiles[j], profiles[i]
			}
		}
	}
	if limit > 0 && limit < len(profiles) {
		profiles = profiles[:limit]
	}
	return profiles, nil
}
