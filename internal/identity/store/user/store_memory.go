package user

import (
	"context"
	"sort"
	"sync"

	"registra/internal/identity/models"
	id "registra/pkg/domain"
	"registra/pkg/requestcontext"
)

// InMemory keeps records in a map guarded by a RWMutex. It intentionally
// favors clarity over performance; the production path is the Postgres store.
// The uniqueness scan runs inside the same critical section as the write, so
// concurrent creates with the same normalized key see exactly one winner.
type InMemory struct {
	mu    sync.RWMutex
	users map[id.UserID]*models.User
}

func NewInMemory() *InMemory {
	return &InMemory{users: make(map[id.UserID]*models.User)}
}

// Create assigns a fresh ID, stamps timestamps, and persists the record if
// neither unique key is taken.
func (s *InMemory) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.findConflict(user, id.UserID{}); err != nil {
		return err
	}

	user.ID = id.NewUserID()
	now := requestcontext.Now(ctx)
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = user.Clone()
	return nil
}

// Update merges the patch into the stored record, holding the lock across
// the uniqueness scan and the write. The record under update is excluded
// from the scan so no-op key rewrites succeed.
func (s *InMemory) Update(ctx context.Context, userID id.UserID, patch models.Patch) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}

	updated := existing.Clone()
	patch.Apply(updated, requestcontext.Now(ctx))

	if err := s.findConflict(updated, userID); err != nil {
		return nil, err
	}

	s.users[userID] = updated
	return updated.Clone(), nil
}

func (s *InMemory) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[userID]; ok {
		return user.Clone(), nil
	}
	return nil, ErrNotFound
}

// List returns all records ordered by creation time, then ID, so concurrent
// writers observe a stable ordering.
func (s *InMemory) List(_ context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *InMemory) Delete(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return ErrNotFound
	}
	delete(s.users, userID)
	return nil
}

// findConflict scans all live records except exclude for a normalized key
// match. Caller must hold the write lock.
func (s *InMemory) findConflict(candidate *models.User, exclude id.UserID) error {
	email := models.NormalizeEmail(candidate.Email)
	nationalID := models.NormalizeNationalID(candidate.NationalID)

	for otherID, other := range s.users {
		if otherID == exclude {
			continue
		}
		if models.NormalizeEmail(other.Email) == email {
			return &DuplicateFieldError{Field: FieldEmail, ConflictingID: otherID}
		}
		if models.NormalizeNationalID(other.NationalID) == nationalID {
			return &DuplicateFieldError{Field: FieldNationalID, ConflictingID: otherID}
		}
	}
	return nil
}
