package db

import (
	"context"
	"time"

	"github.com/deemkeen/burrow/domain"
	"github.com/google/uuid"
)

// Activity queries
const (
	sqlInsertActivity = `INSERT INTO activities(id, activity_uri, activity_type, actor_uri, object_uri, raw_json, processed, local, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(activity_uri) DO NOTHING`
	sqlSelectActivityByURI = `SELECT id, activity_uri, activity_type, actor_uri, object_uri, raw_json, processed, local, created_at
		FROM activities WHERE activity_uri = ?`
)

func (db *DB) CreateActivity(ctx context.Context, activity *domain.Activity) error {
	if activity.Id == uuid.Nil {
		activity.Id = uuid.New()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}
	err := expectRow(db.q().ExecContext(ctx, sqlInsertActivity,
		activity.Id,
		activity.ActivityURI,
		activity.ActivityType,
		activity.ActorURI,
		activity.ObjectURI,
		activity.RawJSON,
		activity.Processed,
		activity.Local,
		activity.CreatedAt.UTC(),
	))
	if err == domain.ErrNotFound {
		return domain.ErrDuplicate
	}
	return err
}

func (db *DB) ReadActivityByURI(ctx context.Context, uri string) (*domain.Activity, error) {
	var activity domain.Activity
	err := db.q().QueryRowContext(ctx, sqlSelectActivityByURI, uri).Scan(
		&activity.Id,
		&activity.ActivityURI,
		&activity.ActivityType,
		&activity.ActorURI,
		&activity.ObjectURI,
		&activity.RawJSON,
		&activity.Processed,
		&activity.Local,
		&activity.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &activity, nil
}

// Delivery Queue queries
const (
	sqlInsertDeliveryQueue     = `INSERT INTO delivery_queue(id, inbox_uri, actor_uri, activity_json, attempts, next_retry_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlSelectPendingDeliveries = `SELECT id, inbox_uri, actor_uri, activity_json, attempts, next_retry_at, created_at FROM delivery_queue
		WHERE next_retry_at <= ? ORDER BY created_at ASC LIMIT ?`
	sqlUpdateDeliveryAttempt = `UPDATE delivery_queue SET attempts = ?, next_retry_at = ? WHERE id = ?`
	sqlDeleteDelivery        = `DELETE FROM delivery_queue WHERE id = ?`
)

func (db *DB) EnqueueDelivery(ctx context.Context, item *domain.DeliveryQueueItem) error {
	if item.Id == uuid.Nil {
		item.Id = uuid.New()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.NextRetryAt.IsZero() {
		item.NextRetryAt = now
	}
	_, err := db.q().ExecContext(ctx, sqlInsertDeliveryQueue,
		item.Id,
		item.InboxURI,
		item.ActorURI,
		item.ActivityJSON,
		item.Attempts,
		item.NextRetryAt.UTC(),
		item.CreatedAt.UTC(),
	)
	return err
}

func (db *DB) ReadPendingDeliveries(ctx context.Context, limit int) ([]domain.DeliveryQueueItem, error) {
	rows, err := db.q().QueryContext(ctx, sqlSelectPendingDeliveries, time.Now().UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.DeliveryQueueItem
	for rows.Next() {
		var item domain.DeliveryQueueItem
		if err := rows.Scan(&item.Id, &item.InboxURI, &item.ActorURI, &item.ActivityJSON, &item.Attempts, &item.NextRetryAt, &item.CreatedAt); err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (db *DB) UpdateDeliveryAttempt(ctx context.Context, id uuid.UUID, attempts int, nextRetry time.Time) error {
	return expectRow(db.q().ExecContext(ctx, sqlUpdateDeliveryAttempt, attempts, nextRetry.UTC(), id))
}

func (db *DB) DeleteDelivery(ctx context.Context, id uuid.UUID) error {
	_, err := db.q().ExecContext(ctx, sqlDeleteDelivery, id)
	return err
}
