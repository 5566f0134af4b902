//go:build integration

package user_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"registra/internal/identity/models"
	"registra/internal/identity/store/user"
	id "registra/pkg/domain"
	"registra/pkg/platform/sentinel"
	"registra/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *user.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = user.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "users", "outbox", "audit_events"))
}

func newTestUser(email, nationalID string) *models.User {
	u, _ := models.NewUser(email, nationalID, "Test", "User", "member", "")
	return u
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	u := newTestUser("pg@example.com", "111.222.333-44")

	s.Require().NoError(s.store.Create(ctx, u))
	s.False(u.ID.IsNil())

	found, err := s.store.FindByID(ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("pg@example.com", found.Email)
	s.Equal("111.222.333-44", found.NationalID)
	s.Equal("test.user", found.Login)
}

func (s *PostgresStoreSuite) TestDuplicateEmailMapped() {
	ctx := context.Background()
	first := newTestUser("Dup@Example.com", "111.222.333-44")
	s.Require().NoError(s.store.Create(ctx, first))

	second := newTestUser("dup@example.com", "999.888.777-66")
	err := s.store.Create(ctx, second)
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	var dupErr *user.DuplicateFieldError
	s.Require().ErrorAs(err, &dupErr)
	s.Equal(user.FieldEmail, dupErr.Field)
	s.Equal(first.ID, dupErr.ConflictingID)
}

func (s *PostgresStoreSuite) TestDuplicateNationalIDMapped() {
	ctx := context.Background()
	first := newTestUser("one@example.com", "111.222.333-44")
	s.Require().NoError(s.store.Create(ctx, first))

	second := newTestUser("two@example.com", "11122233344")
	err := s.store.Create(ctx, second)

	var dupErr *user.DuplicateFieldError
	s.Require().ErrorAs(err, &dupErr)
	s.Equal(user.FieldNationalID, dupErr.Field)
}

func (s *PostgresStoreSuite) TestUpdateSelfExclusion() {
	ctx := context.Background()
	u := newTestUser("self@example.com", "111.222.333-44")
	s.Require().NoError(s.store.Create(ctx, u))

	raw := "11122233344"
	updated, err := s.store.Update(ctx, u.ID, models.Patch{NationalID: &raw})
	s.Require().NoError(err)
	s.Equal(raw, updated.NationalID)
}

func (s *PostgresStoreSuite) TestUpdateNotFound() {
	ctx := context.Background()
	role := "admin"
	_, err := s.store.Update(ctx, id.UserID(uuid.New()), models.Patch{Role: &role})
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDelete() {
	ctx := context.Background()
	u := newTestUser("gone@example.com", "111.222.333-44")
	s.Require().NoError(s.store.Create(ctx, u))

	s.Require().NoError(s.store.Delete(ctx, u.ID))
	_, err := s.store.FindByID(ctx, u.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().ErrorIs(s.store.Delete(ctx, u.ID), sentinel.ErrNotFound)
}

// TestConcurrentUniqueEmailViolation verifies that concurrent creation
// attempts with the same normalized email result in exactly one success.
func (s *PostgresStoreSuite) TestConcurrentUniqueEmailViolation() {
	ctx := context.Background()
	const goroutines = 50

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u := &models.User{
				Email:      "Concurrent@Example.com",
				NationalID: uuid.NewString(), // digits differ per goroutine
				Active:     true,
			}
			err := s.store.Create(ctx, u)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflictCount.Add(1)
			default:
				s.T().Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())
	s.Equal(int32(goroutines-1), conflictCount.Load())

	all, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Len(all, 1)
}
