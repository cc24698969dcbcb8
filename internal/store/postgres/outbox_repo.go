package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"pawbook/backend/internal/events"
)

type outboxEvent struct {
	bun.BaseModel `bun:"table:outbox_events"`

	ID          int64      `bun:"id,pk,autoincrement"`
	EventID     uuid.UUID  `bun:"event_id,notnull,type:uuid"`
	AggregateID string     `bun:"aggregate_id,notnull"`
	EventType   string     `bun:"event_type,notnull"`
	Payload     []byte     `bun:"payload,notnull,type:jsonb"`
	CreatedAt   time.Time  `bun:"created_at,notnull"`
	PublishedAt *time.Time `bun:"published_at"`
}

func (e outboxEvent) record() events.Record {
	return events.Record{
		ID:          e.ID,
		EventID:     e.EventID,
		AggregateID: e.AggregateID,
		EventType:   e.EventType,
		Payload:     e.Payload,
		CreatedAt:   e.CreatedAt,
	}
}

func appendOutbox(ctx context.Context, db bun.IDB, evt events.StatusChanged) error {
	rec, err := events.NewRecord(evt)
	if err != nil {
		return err
	}
	row := outboxEvent{
		EventID:     rec.EventID,
		AggregateID: rec.AggregateID,
		EventType:   rec.EventType,
		Payload:     rec.Payload,
		CreatedAt:   rec.CreatedAt,
	}
	_, err = db.NewInsert().Model(&row).Exec(ctx)
	return err
}

type OutboxRepo struct {
	db *bun.DB
}

func NewOutboxRepo(db *bun.DB) *OutboxRepo {
	return &OutboxRepo{db: db}
}

// PublishBatch locks up to limit unpublished rows, hands them to fn and marks
// them published when fn succeeds. Rows locked by another relay are skipped.
func (r *OutboxRepo) PublishBatch(ctx context.Context, limit int, fn func(ctx context.Context, records []events.Record) error) (int, error) {
	var n int
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var rows []outboxEvent
		err := tx.NewSelect().
			Model(&rows).
			Where("published_at IS NULL").
			OrderExpr("id ASC").
			Limit(limit).
			For("UPDATE SKIP LOCKED").
			Scan(ctx)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		records := make([]events.Record, 0, len(rows))
		ids := make([]int64, 0, len(rows))
		for _, row := range rows {
			records = append(records, row.record())
			ids = append(ids, row.ID)
		}
		if err := fn(ctx, records); err != nil {
			return err
		}

		_, err = tx.NewUpdate().
			Model((*outboxEvent)(nil)).
			Set("published_at = ?", time.Now().UTC()).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx)
		if err != nil {
			return err
		}
		n = len(rows)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
