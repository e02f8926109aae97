package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/selection"
	"github.com/redis/go-redis/v9"
)

const maxUpdateAttempts = 5

// RedisStore keeps drafts as JSON values that expire after ttl of inactivity.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, meetingID int64, userID string) (*selection.Selection, error) {
	return decode(s.rdb.Get(ctx, key(meetingID, userID)), meetingID, userID)
}

// Update retries on WATCH conflicts up to maxUpdateAttempts times.
func (s *RedisStore) Update(ctx context.Context, meetingID int64, userID string, fn func(*selection.Selection) error) (*selection.Selection, error) {
	k := key(meetingID, userID)
	var result *selection.Selection

	txf := func(tx *redis.Tx) error {
		sel, err := decode(tx.Get(ctx, k), meetingID, userID)
		if err != nil {
			return err
		}
		if err := fn(sel); err != nil {
			return err
		}
		raw, err := json.Marshal(sel)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, raw, s.ttl)
			return nil
		})
		if err == nil {
			result = sel
		}
		return err
	}

	for i := 0; i < maxUpdateAttempts; i++ {
		err := s.rdb.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, ErrConflict
}

func (s *RedisStore) Delete(ctx context.Context, meetingID int64, userID string) error {
	return s.rdb.Del(ctx, key(meetingID, userID)).Err()
}

func decode(cmd *redis.StringCmd, meetingID int64, userID string) (*selection.Selection, error) {
	raw, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return selection.New(meetingID, userID), nil
	}
	if err != nil {
		return nil, err
	}
	var sel selection.Selection
	if err := json.Unmarshal(raw, &sel); err != nil {
		return nil, err
	}
	if sel.Slots == nil {
		sel.Slots = selection.New(meetingID, userID).Slots
	}
	return &sel, nil
}
