//go:build integration

package history_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"registra/internal/credential/history"
	id "registra/pkg/domain"
	"registra/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *history.RedisStore
	ctx   context.Context
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = history.NewRedisStore(s.redis.Client)
	s.ctx = context.Background()
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func entry(hash string, setAt time.Time) history.Entry {
	return history.Entry{PasswordHash: hash, SetAt: setAt, SetBy: "admin"}
}

func (s *RedisStoreSuite) TestAppendAndRecent() {
	userID := id.UserID(uuid.New())
	now := time.Now().UTC().Truncate(time.Second)

	s.Require().NoError(s.store.Append(s.ctx, userID, entry("hash-1", now)))
	s.Require().NoError(s.store.Append(s.ctx, userID, entry("hash-2", now.Add(time.Minute))))

	entries, err := s.store.Recent(s.ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal("hash-2", entries[0].PasswordHash)
	s.Equal("hash-1", entries[1].PasswordHash)
	s.Equal("admin", entries[0].SetBy)
	s.True(entries[0].SetAt.Equal(now.Add(time.Minute)))
}

func (s *RedisStoreSuite) TestCapTrimsOldest() {
	userID := id.UserID(uuid.New())
	now := time.Now()

	for i, hash := range []string{"hash-1", "hash-2", "hash-3"} {
		s.Require().NoError(s.store.Append(s.ctx, userID, entry(hash, now.Add(time.Duration(i)*time.Minute))))
	}

	entries, err := s.store.Recent(s.ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(entries, history.Cap)
	s.Equal("hash-3", entries[0].PasswordHash)
	s.Equal("hash-2", entries[1].PasswordHash)
}

func (s *RedisStoreSuite) TestConcurrentAppendsNeverExceedCap() {
	userID := id.UserID(uuid.New())
	now := time.Now()

	const appenders = 20
	done := make(chan error, appenders)
	for i := 0; i < appenders; i++ {
		go func(i int) {
			done <- s.store.Append(s.ctx, userID, entry("hash", now.Add(time.Duration(i)*time.Second)))
		}(i)
	}
	for i := 0; i < appenders; i++ {
		s.Require().NoError(<-done)
	}

	entries, err := s.store.Recent(s.ctx, userID)
	s.Require().NoError(err)
	s.LessOrEqual(len(entries), history.Cap)
}

func (s *RedisStoreSuite) TestClear() {
	userID := id.UserID(uuid.New())
	s.Require().NoError(s.store.Append(s.ctx, userID, entry("hash-1", time.Now())))
	s.Require().NoError(s.store.Clear(s.ctx, userID))

	entries, err := s.store.Recent(s.ctx, userID)
	s.Require().NoError(err)
	s.Empty(entries)
}

func (s *RedisStoreSuite) TestUsersAreIsolated() {
	first := id.UserID(uuid.New())
	second := id.UserID(uuid.New())

	s.Require().NoError(s.store.Append(s.ctx, first, entry("hash-1", time.Now())))

	entries, err := s.store.Recent(s.ctx, second)
	s.Require().NoError(err)
	s.Empty(entries)
}
