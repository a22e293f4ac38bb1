package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MaxRecentRecords caps how many records a by-subscription query returns.
const MaxRecentRecords = 20

// ErrNoRecords is returned when a task has no attempt records.
var ErrNoRecords = errors.New("no delivery attempts recorded")

// Store persists Records in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Append inserts one attempt record. The store is append-only: nothing here
// updates or deletes individual rows.
func (s *Store) Append(ctx context.Context, rec Record) error {
	var payloadJSON []byte
	if rec.Payload != nil {
		var err error
		payloadJSON, err = json.Marshal(rec.Payload)
		if err != nil {
			return fmt.Errorf("marshal attempt payload: %w", err)
		}
	}

	var statusCode sql.NullInt32
	if rec.StatusCode != nil {
		statusCode = sql.NullInt32{Int32: int32(*rec.StatusCode), Valid: true}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO wharfhook.delivery_attempts
			(task_id, subscription_id, target_url, payload, attempt_number, outcome, status_code, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))`,
		rec.TaskID, rec.SubscriptionID, rec.TargetURL, payloadJSON,
		rec.AttemptNumber, string(rec.Outcome), statusCode, rec.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("append delivery attempt: %w", err)
	}
	return nil
}

// LatestByTask returns the highest-numbered attempt record for a task, or
// ErrNoRecords when the task is unknown.
func (s *Store) LatestByTask(ctx context.Context, taskID string) (Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, task_id, subscription_id, target_url, payload, attempt_number, outcome, status_code, error_message, created_at
		FROM wharfhook.delivery_attempts
		WHERE task_id = $1
		ORDER BY attempt_number DESC, id DESC
		LIMIT 1`, taskID)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNoRecords
		}
		return Record{}, err
	}
	return rec, nil
}

// RecentBySubscription returns up to limit records for a subscription, newest
// first. The limit is clamped to MaxRecentRecords.
func (s *Store) RecentBySubscription(ctx context.Context, subscriptionID int64, limit int) ([]Record, error) {
	if limit <= 0 || limit > MaxRecentRecords {
		limit = MaxRecentRecords
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, task_id, subscription_id, target_url, payload, attempt_number, outcome, status_code, error_message, created_at
		FROM wharfhook.delivery_attempts
		WHERE subscription_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, subscriptionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// PurgeOlderThan bulk-deletes records older than maxAge and returns the count.
// Retention housekeeping only; not part of pipeline correctness.
func (s *Store) PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	ct, err := s.pool.Exec(ctx, `
		DELETE FROM wharfhook.delivery_attempts WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge delivery attempts: %w", err)
	}
	return ct.RowsAffected(), nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	var payloadJSON []byte
	var statusCode sql.NullInt32
	var errMsg sql.NullString
	var outcome string

	if err := row.Scan(
		&rec.ID, &rec.TaskID, &rec.SubscriptionID, &rec.TargetURL, &payloadJSON,
		&rec.AttemptNumber, &outcome, &statusCode, &errMsg, &rec.CreatedAt,
	); err != nil {
		return Record{}, err
	}

	rec.Outcome = Outcome(outcome)
	if payloadJSON != nil {
		if err := json.Unmarshal(payloadJSON, &rec.Payload); err != nil {
			return Record{}, fmt.Errorf("unmarshal attempt payload: %w", err)
		}
	}
	if statusCode.Valid {
		code := int(statusCode.Int32)
		rec.StatusCode = &code
	}
	rec.ErrorMessage = errMsg.String
	return rec, nil
}
