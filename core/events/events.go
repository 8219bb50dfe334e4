// Package events is a transactional outbox. Order lifecycle events are
// written in the same transaction as the state change they describe and
// relayed to Kafka afterwards, at least once.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/irsalhamdi/e-commerce-shop/validate"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	OrderCreated       = "order.created"
	OrderPlaced        = "order.placed"
	OrderPaymentFailed = "order.payment_failed"
	OrderCancelled     = "order.cancelled"

	OrderPaymentNeedsReview = "order.payment_needs_review"
)

type Event struct {
	ID          string          `json:"id" db:"event_id"`
	Type        string          `json:"type" db:"event_type"`
	AggregateID string          `json:"aggregateId" db:"aggregate_id"`
	Payload     json.RawMessage `json:"payload" db:"payload"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	PublishedAt *time.Time      `json:"publishedAt,omitempty" db:"published_at"`
}

// Record appends an event to the outbox. Pass the transaction of the change
// the event describes.
func Record(ctx context.Context, db sqlx.ExtContext, typ, aggregateID string, payload interface{}, now time.Time) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshalling %s payload: %w", typ, err)
	}

	ev := Event{
		ID:          validate.GenerateID(),
		Type:        typ,
		AggregateID: aggregateID,
		Payload:     data,
		CreatedAt:   now,
	}

	const q = `
	INSERT INTO outbox
		(event_id, event_type, aggregate_id, payload, created_at)
	VALUES
		($1, $2, $3, $4, $5)`

	if _, err := db.ExecContext(ctx, q, ev.ID, ev.Type, ev.AggregateID, []byte(ev.Payload), ev.CreatedAt); err != nil {
		return Event{}, fmt.Errorf("inserting %s event of [%s]: %w", typ, aggregateID, err)
	}

	return ev, nil
}

// FetchPending locks up to limit unpublished events, oldest first. Rows
// locked by another relay are skipped.
func FetchPending(ctx context.Context, db sqlx.QueryerContext, limit int) ([]Event, error) {
	const q = `
	SELECT event_id, event_type, aggregate_id, payload, created_at, published_at
	FROM outbox
	WHERE published_at IS NULL
	ORDER BY created_at, event_id
	LIMIT $1
	FOR UPDATE SKIP LOCKED`

	evs := []Event{}
	if err := sqlx.SelectContext(ctx, db, &evs, q, limit); err != nil {
		return nil, fmt.Errorf("selecting pending events: %w", err)
	}
	return evs, nil
}

func MarkPublished(ctx context.Context, db sqlx.ExtContext, ids []string, now time.Time) error {
	const q = `UPDATE outbox SET published_at = $1 WHERE event_id = ANY($2)`

	if _, err := db.ExecContext(ctx, q, now, pq.Array(ids)); err != nil {
		return fmt.Errorf("marking %d events published: %w", len(ids), err)
	}
	return nil
}

// ListByAggregate returns the events recorded for one aggregate, oldest first.
func ListByAggregate(ctx context.Context, db sqlx.QueryerContext, aggregateID string) ([]Event, error) {
	const q = `
	SELECT event_id, event_type, aggregate_id, payload, created_at, published_at
	FROM outbox
	WHERE aggregate_id = $1
	ORDER BY created_at, event_id`

	evs := []Event{}
	if err := sqlx.SelectContext(ctx, db, &evs, q, aggregateID); err != nil {
		return nil, fmt.Errorf("selecting events of [%s]: %w", aggregateID, err)
	}
	return evs, nil
}
