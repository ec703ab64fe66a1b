// Package memory is a process-local accesshub.CredentialStore for
// development and tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/accesshub"
)

// Store keeps users in maps guarded by a mutex.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]accesshub.UserRecord
	byEmail map[string]string
	now     func() time.Time
}

var (
	_ accesshub.CredentialStore     = (*Store)(nil)
	_ accesshub.PasswordHashUpdater = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		byID:    make(map[string]accesshub.UserRecord),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (s *Store) FindByEmail(_ context.Context, email string) (accesshub.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[normalize(email)]
	if !ok {
		return accesshub.UserRecord{}, accesshub.ErrUserNotFound
	}
	return s.byID[id], nil
}

func (s *Store) FindByID(_ context.Context, userID string) (accesshub.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[userID]
	if !ok {
		return accesshub.UserRecord{}, accesshub.ErrUserNotFound
	}
	return u, nil
}

// Create inserts nu. Email uniqueness is case-insensitive.
func (s *Store) Create(_ context.Context, nu accesshub.NewUser) (accesshub.UserRecord, error) {
	email := normalize(nu.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return accesshub.UserRecord{}, accesshub.ErrUserExists
	}
	if _, ok := s.byID[nu.UserID]; ok {
		return accesshub.UserRecord{}, accesshub.ErrUserExists
	}

	rec := accesshub.UserRecord{
		UserID:       nu.UserID,
		Email:        email,
		Name:         nu.Name,
		PasswordHash: nu.PasswordHash,
		CreatedAt:    s.now().UTC(),
	}
	s.byID[rec.UserID] = rec
	s.byEmail[email] = rec.UserID
	return rec, nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return accesshub.ErrUserNotFound
	}
	u.PasswordHash = hash
	s.byID[userID] = u
	return nil
}

// Len reports how many users are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
