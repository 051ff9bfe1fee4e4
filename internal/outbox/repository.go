package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pos-core/internal/database"
)

// Message is an event waiting to be relayed to the broker
type Message struct {
	ID           uuid.UUID
	Topic        string
	Headers      map[string]string
	Payload      json.RawMessage
	PartitionKey *string
	CreatedAt    time.Time
}

// Result records the outcome of relaying one message. A nil Error means it
// was published.
type Result struct {
	ID    uuid.UUID
	Error *string
}

// Repository stores outbox messages. Create is called inside the
// transaction that produced the event.
type Repository interface {
	WithDB(db database.DBTX) Repository
	Create(ctx context.Context, msg *Message) error
	// ListUnprocessed locks up to batchSize pending messages, skipping rows
	// locked by another relay.
	ListUnprocessed(ctx context.Context, batchSize int) ([]Message, error)
	MarkProcessed(ctx context.Context, results []Result) error
}

type repository struct {
	db database.DBTX
}

func NewRepository(db database.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) WithDB(db database.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, msg *Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	headers, err := json.Marshal(msg.Headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO outbox_messages (id, topic, headers, payload, partition_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.Topic, string(headers), string(msg.Payload), msg.PartitionKey, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("outbox msg create: %w", err)
	}
	return nil
}

func (r *repository) ListUnprocessed(ctx context.Context, batchSize int) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, topic, headers, payload, partition_key, created_at
		FROM outbox_messages
		WHERE processed_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, batchSize)
	if err != nil {
		return nil, fmt.Errorf("outbox msg list unprocessed: %w", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var (
			msg     Message
			headers []byte
			payload []byte
		)
		if err := rows.Scan(&msg.ID, &msg.Topic, &headers, &payload, &msg.PartitionKey, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("outbox msg scan: %w", err)
		}
		msg.Headers = map[string]string{}
		if len(headers) > 0 {
			if err := json.Unmarshal(headers, &msg.Headers); err != nil {
				return nil, fmt.Errorf("unmarshal headers: %w", err)
			}
		}
		msg.Payload = payload
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox msg iterate: %w", err)
	}
	return msgs, nil
}

func (r *repository) MarkProcessed(ctx context.Context, results []Result) error {
	for _, res := range results {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE outbox_messages SET processed_at = NOW(), error = $2 WHERE id = $1`,
			res.ID, res.Error,
		); err != nil {
			return fmt.Errorf("outbox msg mark processed: %w", err)
		}
	}
	return nil
}
