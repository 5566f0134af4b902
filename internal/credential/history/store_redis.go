package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	id "registra/pkg/domain"
	"registra/pkg/platform/sentinel"
)

// RedisStore keeps each user's history in a Redis list, newest entry at the
// head. LPUSH and LTRIM run in one pipeline so the cap holds even with
// concurrent appenders interleaving: every append trims to Cap before any
// reader observes the list.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func historyKey(userID id.UserID) string {
	return "pwhistory:" + userID.String()
}

func (s *RedisStore) Recent(ctx context.Context, userID id.UserID) ([]Entry, error) {
	raw, err := s.client.LRange(ctx, historyKey(userID), 0, Cap-1).Result()
	if err != nil {
		return nil, unavailable("read history", err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("decode history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *RedisStore) Append(ctx context.Context, userID id.UserID, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}

	key := historyKey(userID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, payload)
		pipe.LTrim(ctx, key, 0, Cap-1)
		return nil
	})
	if err != nil {
		return unavailable("append history", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, userID id.UserID) error {
	if err := s.client.Del(ctx, historyKey(userID)).Err(); err != nil {
		return unavailable("clear history", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
}
