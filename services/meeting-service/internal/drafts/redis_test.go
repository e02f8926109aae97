package drafts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/md-rashed-zaman/oneonone/libs/slots"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/selection"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, ttl), mr, rdb
}

func addCandidate(i int) func(*selection.Selection) error {
	return func(s *selection.Selection) error {
		_, err := s.Add(candidate(i), slots.PriorityHigh, selection.Constraints{})
		return err
	}
}

func TestRedisStoreUpdateSetsTTL(t *testing.T) {
	ctx := context.Background()
	st, mr, _ := newRedisStore(t, 30*time.Minute)

	got, err := st.Get(ctx, 3, "u1")
	if err != nil || got.Len() != 0 {
		t.Fatalf("expected empty draft, got %+v err=%v", got, err)
	}
	if _, err := st.Update(ctx, 3, "u1", addCandidate(1)); err != nil {
		t.Fatalf("update: %v", err)
	}
	if ttl := mr.TTL(key(3, "u1")); ttl != 30*time.Minute {
		t.Fatalf("expected 30m ttl, got %v", ttl)
	}
	got, err = st.Get(ctx, 3, "u1")
	if err != nil || got.Len() != 1 {
		t.Fatalf("expected 1 slot, got %+v err=%v", got, err)
	}

	mr.FastForward(31 * time.Minute)
	got, err = st.Get(ctx, 3, "u1")
	if err != nil || got.Len() != 0 {
		t.Fatalf("expired draft should read as empty, got %+v err=%v", got, err)
	}
}

func TestRedisStoreRetriesWatchConflict(t *testing.T) {
	ctx := context.Background()
	st, _, rdb := newRedisStore(t, time.Hour)
	k := key(4, "u1")

	calls := 0
	_, err := st.Update(ctx, 4, "u1", func(s *selection.Selection) error {
		calls++
		if calls == 1 {
			// A concurrent writer touches the key after WATCH.
			if err := rdb.Set(ctx, k, `{"meeting_id":4,"user_id":"u1","slots":[]}`, time.Hour).Err(); err != nil {
				t.Fatalf("concurrent set: %v", err)
			}
		}
		return addCandidate(2)(s)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one retry, got %d calls", calls)
	}
	got, _ := st.Get(ctx, 4, "u1")
	if got.Len() != 1 {
		t.Fatalf("expected retried write to land, got %d slots", got.Len())
	}
}

func TestRedisStoreGivesUpAfterRepeatedConflicts(t *testing.T) {
	ctx := context.Background()
	st, _, rdb := newRedisStore(t, time.Hour)
	k := key(5, "u1")

	calls := 0
	_, err := st.Update(ctx, 5, "u1", func(s *selection.Selection) error {
		calls++
		return rdb.Set(ctx, k, `{"meeting_id":5,"user_id":"u1"}`, time.Hour).Err()
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if calls != maxUpdateAttempts {
		t.Fatalf("expected %d attempts, got %d", maxUpdateAttempts, calls)
	}
}

func TestRedisStoreDecodesMissingSlots(t *testing.T) {
	ctx := context.Background()
	st, mr, _ := newRedisStore(t, time.Hour)
	if err := mr.Set(key(6, "u1"), `{"meeting_id":6,"user_id":"u1","slots":null}`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := st.Get(ctx, 6, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Slots == nil || got.Len() != 0 {
		t.Fatalf("expected empty non-nil slots, got %#v", got.Slots)
	}

	if err := st.Delete(ctx, 6, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists(key(6, "u1")) {
		t.Fatal("draft should be deleted")
	}
}
