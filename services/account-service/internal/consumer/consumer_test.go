package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/oneonone/libs/events"
	"github.com/md-rashed-zaman/oneonone/libs/kafkax"
	"github.com/md-rashed-zaman/oneonone/services/account-service/internal/notify"
	"github.com/segmentio/kafka-go"
)

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

type fakeSink struct {
	mu   sync.Mutex
	seen map[string]bool
	recs []notify.Record
	err  error
}

func (s *fakeSink) Deliver(_ context.Context, eventID, _ string, recs []notify.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if s.seen[eventID] {
		return false, nil
	}
	s.seen[eventID] = true
	s.recs = append(s.recs, recs...)
	return true, nil
}

func message(t *testing.T, eventID, eventType string) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(events.MeetingEvent{
		MeetingID:   1,
		Title:       "Sync",
		RecipientID: "guest",
		Deadline:    time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return kafka.Message{
		Topic:   eventType,
		Key:     []byte("1"),
		Value:   payload,
		Headers: kafkax.EventMeta{EventID: eventID, EventType: eventType}.Headers(),
	}
}

func newConsumer(sink Sink, reader Reader) *Consumer {
	c := NewWithReader(slog.New(slog.NewTextHandler(io.Discard, nil)), sink, reader)
	c.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	c.retry = time.Millisecond
	return c
}

func TestHandleDedupesByEventID(t *testing.T) {
	sink := &fakeSink{seen: map[string]bool{}}
	c := newConsumer(sink, &fakeReader{})
	ctx := context.Background()

	msg := message(t, "evt-1", events.MeetingReminderRequested)
	if err := c.handle(ctx, msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.handle(ctx, msg); err != nil {
		t.Fatalf("unexpected error on duplicate: %v", err)
	}
	if len(sink.recs) != 1 {
		t.Fatalf("expected one stored notification, got %d", len(sink.recs))
	}
}

func TestHandleDropsBadPayload(t *testing.T) {
	sink := &fakeSink{seen: map[string]bool{}}
	c := newConsumer(sink, &fakeReader{})
	msg := kafka.Message{Topic: events.MeetingInvited, Value: []byte("not json")}
	if err := c.handle(context.Background(), msg); err != nil {
		t.Fatalf("bad payloads should be dropped, got %v", err)
	}
	if len(sink.seen) != 0 {
		t.Fatal("nothing should be delivered")
	}
}

func TestHandleReturnsSinkError(t *testing.T) {
	sink := &fakeSink{seen: map[string]bool{}, err: errors.New("db down")}
	c := newConsumer(sink, &fakeReader{})
	if err := c.handle(context.Background(), message(t, "evt-2", events.MeetingDeclined)); err == nil {
		t.Fatal("expected the sink error so the message is retried")
	}
}

func TestHandleWithoutEventIDHeaderUsesLogPosition(t *testing.T) {
	sink := &fakeSink{seen: map[string]bool{}}
	c := newConsumer(sink, &fakeReader{})
	for offset := int64(40); offset < 42; offset++ {
		msg := message(t, "", events.MeetingRescheduled)
		msg.Headers = nil
		msg.Offset = offset
		if err := c.handle(context.Background(), msg); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	if len(sink.seen) != 2 || !sink.seen["meeting.rescheduled.v1/0/41"] {
		t.Fatalf("same-key messages must not dedupe each other: %v", sink.seen)
	}
}

func TestRunCommitsHandledMessages(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		message(t, "evt-a", events.MeetingInvited),
		message(t, "evt-b", events.MeetingRescheduled),
	}}
	sink := &fakeSink{seen: map[string]bool{}}
	c := newConsumer(sink, reader)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for reader.commits() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if reader.commits() != 2 {
		t.Fatalf("expected 2 commits, got %d", reader.commits())
	}
	if !reader.closed {
		t.Fatal("reader should be closed when Run returns")
	}
	if len(sink.recs) != 3 {
		t.Fatalf("expected 3 notifications (invitation, reminder, update), got %d", len(sink.recs))
	}
}
