package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	otelx "github.com/md-rashed-zaman/oneonone/libs/otel"
)

const insertEvent = `
	INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
	VALUES ($1, $2, $3, $4, $5, $6)
`

// Repository works inside transactions owned by the caller, so events commit
// or roll back together with the meeting rows that produced them.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// InsertAll queues evts in one round trip, each stamped with the trace
// context of ctx.
func (r *Repository) InsertAll(ctx context.Context, tx pgx.Tx, evts []Event) error {
	if len(evts) == 0 {
		return nil
	}
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	batch := &pgx.Batch{}
	for _, evt := range evts {
		batch.Queue(insertEvent, evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, traceparent, tracestate)
	}
	return tx.SendBatch(ctx, batch).Close()
}

// Pending is an unpublished outbox row.
type Pending struct {
	ID          int64
	EventID     string
	Key         string
	Topic       string
	Payload     []byte
	Traceparent string
	Tracestate  string
	CreatedAt   time.Time
}

// ClaimBatch locks up to limit unpublished rows. Concurrent publishers skip
// rows another transaction holds.
func (r *Repository) ClaimBatch(ctx context.Context, tx pgx.Tx, limit int) ([]Pending, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_id::text, aggregate_id, event_type, payload, traceparent, tracestate, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Pending, error) {
		var p Pending
		err := row.Scan(&p.ID, &p.EventID, &p.Key, &p.Topic, &p.Payload, &p.Traceparent, &p.Tracestate, &p.CreatedAt)
		return p, err
	})
}

func (r *Repository) MarkPublished(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `UPDATE outbox_events SET published_at = now() WHERE id = ANY($1)`, ids)
	return err
}
