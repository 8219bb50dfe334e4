package events

import (
	"context"
	"fmt"
	"time"

	"github.com/irsalhamdi/e-commerce-shop/database"
	"github.com/jmoiron/sqlx"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// MessageWriter is the part of *kafka.Writer the relay needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

// Relay moves outbox events to Kafka. Events of one order share a message
// key, so they land on one partition in the order they were recorded.
type Relay struct {
	db       *sqlx.DB
	writer   MessageWriter
	batch    int
	interval time.Duration
	log      logrus.FieldLogger
}

func NewRelay(db *sqlx.DB, w MessageWriter, batch int, interval time.Duration, log logrus.FieldLogger) *Relay {
	if batch <= 0 {
		batch = 100
	}
	return &Relay{db: db, writer: w, batch: batch, interval: interval, log: log}
}

// Run flushes every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n, err := r.Flush(ctx)
			if err != nil && ctx.Err() == nil {
				r.log.WithError(err).Error("relaying outbox events")
				continue
			}
			if n > 0 {
				r.log.WithField("events", n).Debug("relayed outbox events")
			}
		}
	}
}

// Flush publishes one batch. The rows stay locked while publishing and are
// marked only after Kafka acknowledged them; a crash in between republishes.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	var n int
	err := database.Transaction(ctx, r.db, func(tx sqlx.ExtContext) error {
		evs, err := FetchPending(ctx, tx, r.batch)
		if err != nil {
			return err
		}
		if len(evs) == 0 {
			return nil
		}

		msgs := make([]kafka.Message, 0, len(evs))
		ids := make([]string, 0, len(evs))
		for _, ev := range evs {
			msgs = append(msgs, kafka.Message{
				Key:   []byte(ev.AggregateID),
				Value: ev.Payload,
				Time:  ev.CreatedAt,
				Headers: []kafka.Header{
					{Key: "event_id", Value: []byte(ev.ID)},
					{Key: "event_type", Value: []byte(ev.Type)},
				},
			})
			ids = append(ids, ev.ID)
		}

		if err := r.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("writing %d messages: %w", len(msgs), err)
		}

		if err := MarkPublished(ctx, tx, ids, time.Now().UTC()); err != nil {
			return err
		}

		n = len(evs)
		return nil
	})

	return n, err
}
