package user

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"registra/internal/identity/models"
	id "registra/pkg/domain"
	"registra/pkg/platform/sentinel"
)

type InMemoryUserStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *InMemoryUserStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestInMemoryUserStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryUserStoreSuite))
}

func (s *InMemoryUserStoreSuite) newUser(email, nationalID string) *models.User {
	u, err := models.NewUser(email, nationalID, "Jane", "Doe", "member", "")
	s.Require().NoError(err)
	return u
}

func (s *InMemoryUserStoreSuite) TestCreateAssignsIdentity() {
	u := s.newUser("jane.doe@example.com", "111.222.333-44")
	s.Require().NoError(s.store.Create(s.ctx, u))

	s.False(u.ID.IsNil())
	s.False(u.CreatedAt.IsZero())
	s.Equal(u.CreatedAt, u.UpdatedAt)

	found, err := s.store.FindByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(u.Email, found.Email)
}

func (s *InMemoryUserStoreSuite) TestUniqueness() {
	s.Run("rejects duplicate email case-insensitively", func() {
		store := NewInMemory()
		first := s.newUser("A@X.com", "111.222.333-44")
		s.Require().NoError(store.Create(s.ctx, first))

		dup := s.newUser("a@x.com", "999.888.777-66")
		err := store.Create(s.ctx, dup)
		s.Require().ErrorIs(err, sentinel.ErrConflict)

		var dupErr *DuplicateFieldError
		s.Require().ErrorAs(err, &dupErr)
		s.Equal(FieldEmail, dupErr.Field)
		s.Equal(first.ID, dupErr.ConflictingID)
	})

	s.Run("rejects duplicate national ID ignoring formatting", func() {
		store := NewInMemory()
		first := s.newUser("one@example.com", "111.222.333-44")
		s.Require().NoError(store.Create(s.ctx, first))

		dup := s.newUser("two@example.com", "11122233344")
		err := store.Create(s.ctx, dup)

		var dupErr *DuplicateFieldError
		s.Require().ErrorAs(err, &dupErr)
		s.Equal(FieldNationalID, dupErr.Field)
		s.Equal(first.ID, dupErr.ConflictingID)
	})

	s.Run("update excludes the record itself from the scan", func() {
		store := NewInMemory()
		u := s.newUser("self@example.com", "111.222.333-44")
		s.Require().NoError(store.Create(s.ctx, u))

		// Digits-only rewrite of the same national ID must succeed.
		raw := "11122233344"
		updated, err := store.Update(s.ctx, u.ID, models.Patch{NationalID: &raw})
		s.Require().NoError(err)
		s.Equal(raw, updated.NationalID)
	})

	s.Run("update still collides with other records", func() {
		store := NewInMemory()
		first := s.newUser("first@example.com", "111.222.333-44")
		second := s.newUser("second@example.com", "555.666.777-88")
		s.Require().NoError(store.Create(s.ctx, first))
		s.Require().NoError(store.Create(s.ctx, second))

		taken := "FIRST@example.com"
		_, err := store.Update(s.ctx, second.ID, models.Patch{Email: &taken})

		var dupErr *DuplicateFieldError
		s.Require().ErrorAs(err, &dupErr)
		s.Equal(FieldEmail, dupErr.Field)
		s.Equal(first.ID, dupErr.ConflictingID)
	})
}

func (s *InMemoryUserStoreSuite) TestUpdateMergesPatch() {
	u := s.newUser("patch@example.com", "111.222.333-44")
	s.Require().NoError(s.store.Create(s.ctx, u))

	role := "admin"
	inactive := false
	updated, err := s.store.Update(s.ctx, u.ID, models.Patch{Role: &role, Active: &inactive})
	s.Require().NoError(err)

	s.Equal("admin", updated.Role)
	s.False(updated.Active)
	s.Equal(u.Email, updated.Email)
	s.True(updated.UpdatedAt.After(u.UpdatedAt) || updated.UpdatedAt.Equal(u.UpdatedAt))
}

func (s *InMemoryUserStoreSuite) TestDelete() {
	s.Run("deletes and makes the record unfindable", func() {
		store := NewInMemory()
		u := s.newUser("delete.me@example.com", "111.222.333-44")
		s.Require().NoError(store.Create(s.ctx, u))

		s.Require().NoError(store.Delete(s.ctx, u.ID))

		_, err := store.FindByID(s.ctx, u.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returns ErrNotFound for unknown records", func() {
		err := s.store.Delete(s.ctx, id.UserID(uuid.New()))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("frees the unique keys for reuse", func() {
		store := NewInMemory()
		u := s.newUser("recycle@example.com", "111.222.333-44")
		s.Require().NoError(store.Create(s.ctx, u))
		s.Require().NoError(store.Delete(s.ctx, u.ID))

		again := s.newUser("recycle@example.com", "111.222.333-44")
		s.Require().NoError(store.Create(s.ctx, again))
		s.NotEqual(u.ID, again.ID)
	})
}

func (s *InMemoryUserStoreSuite) TestConcurrentCreateOneWinner() {
	const writers = 32

	var wg sync.WaitGroup
	var successes, conflicts atomic.Int32

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u := &models.User{
				Email:      "race@example.com",
				NationalID: "111.222.333-44",
				Active:     true,
			}
			err := s.store.Create(context.Background(), u)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load())
	s.Equal(int32(writers-1), conflicts.Load())

	all, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *InMemoryUserStoreSuite) TestListOrdering() {
	first := s.newUser("first@example.com", "111.111.111-11")
	second := s.newUser("second@example.com", "222.222.222-22")
	s.Require().NoError(s.store.Create(s.ctx, first))
	s.Require().NoError(s.store.Create(s.ctx, second))

	all, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.False(all[1].CreatedAt.Before(all[0].CreatedAt))
}
