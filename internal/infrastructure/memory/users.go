package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/phone-verify/internal/domain"
)

// UserStore is a map-backed user lookup.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewUserStore(users ...domain.User) *UserStore {
	s := &UserStore{users: make(map[string]domain.User, len(users))}
	for _, u := range users {
		s.users[u.UserID] = u
	}
	return s
}

func (s *UserStore) Put(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.UserID] = u
}

func (s *UserStore) Get(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return &u, nil
}
