// Package outbox relays audit events from the Postgres outbox table to Kafka.
// Kafka is the source of truth for the audit trail; the relay marks rows
// published only after the broker acknowledges them, so delivery is
// at-least-once and consumers must tolerate duplicates (event IDs are stable).
package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultBatchSize    = 100
)

// Relay polls the outbox table and produces unpublished entries to Kafka.
type Relay struct {
	db       *sql.DB
	client   *kgo.Client
	topic    string
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

func NewRelay(db *sql.DB, seeds []string, topic string, logger *slog.Logger) (*Relay, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(seeds...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Relay{
		db:       db,
		client:   client,
		topic:    topic,
		logger:   logger,
		interval: defaultPollInterval,
		batch:    defaultBatchSize,
	}, nil
}

// EnsureTopic creates the audit topic if it does not exist yet.
func (r *Relay) EnsureTopic(ctx context.Context) error {
	adm := kadm.NewClient(r.client)
	resp, err := adm.CreateTopics(ctx, 1, 1, nil, r.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", r.topic, err)
	}
	for _, res := range resp {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", res.Topic, res.Err)
		}
	}
	return nil
}

// Run polls until the context is cancelled. Relay errors are logged and
// retried on the next tick; audit delivery is best-effort from the caller's
// perspective and must never block data mutations.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := r.relayBatch(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox relay batch failed", "error", err)
			} else if n > 0 {
				r.logger.DebugContext(ctx, "relayed audit events", "count", n)
			}
		}
	}
}

// relayBatch claims up to batch unpublished rows, produces them, and marks
// them published in the same transaction. SKIP LOCKED lets multiple relay
// instances run without double-claiming.
func (r *Relay) relayBatch(ctx context.Context) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin outbox tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_id, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, r.batch)
	if err != nil {
		return 0, fmt.Errorf("claim outbox rows: %w", err)
	}

	var (
		ids     []string
		records []*kgo.Record
	)
	for rows.Next() {
		var entryID, aggregateID string
		var payload []byte
		if err := rows.Scan(&entryID, &aggregateID, &payload); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan outbox row: %w", err)
		}
		ids = append(ids, entryID)
		records = append(records, &kgo.Record{
			Key:   []byte(aggregateID),
			Value: payload,
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate outbox rows: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	if err := r.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return 0, fmt.Errorf("produce audit events: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE outbox SET published_at = NOW() WHERE id = ANY($1)
	`, pq.Array(ids)); err != nil {
		return 0, fmt.Errorf("mark outbox rows published: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit outbox tx: %w", err)
	}
	return len(records), nil
}

// Close flushes and releases the Kafka client.
func (r *Relay) Close() {
	r.client.Close()
}
