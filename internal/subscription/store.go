package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the durable subscription store. The delivery pipeline only ever
// calls Get; the mutating methods back the management API.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Get returns the subscription with the given ID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (Subscription, error) {
	var sub Subscription
	var secret, eventType sql.NullString
	err := s.pool.QueryRow(ctx, `
		SELECT id, target_url, secret, event_type, created_at
		FROM wharfhook.subscriptions
		WHERE id = $1`, id,
	).Scan(&sub.ID, &sub.TargetURL, &secret, &eventType, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Subscription{}, ErrNotFound
		}
		return Subscription{}, err
	}
	sub.Secret = secret.String
	sub.EventType = eventType.String
	return sub, nil
}

// Create inserts a new subscription and returns it with ID and creation time set.
func (s *Store) Create(ctx context.Context, targetURL, secret, eventType string) (Subscription, error) {
	if _, err := url.ParseRequestURI(targetURL); err != nil {
		return Subscription{}, fmt.Errorf("invalid target_url: %w", err)
	}

	sub := Subscription{TargetURL: targetURL, Secret: secret, EventType: eventType}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO wharfhook.subscriptions(target_url, secret, event_type)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''))
		RETURNING id, created_at`,
		targetURL, secret, eventType,
	).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return Subscription{}, err
	}
	return sub, nil
}

// Update applies a partial update: empty fields keep their stored value.
// Returns the updated subscription, or ErrNotFound.
func (s *Store) Update(ctx context.Context, id int64, targetURL, secret, eventType string) (Subscription, error) {
	if targetURL != "" {
		if _, err := url.ParseRequestURI(targetURL); err != nil {
			return Subscription{}, fmt.Errorf("invalid target_url: %w", err)
		}
	}

	var sub Subscription
	var outSecret, outEventType sql.NullString
	err := s.pool.QueryRow(ctx, `
		UPDATE wharfhook.subscriptions
		SET target_url = COALESCE(NULLIF($2, ''), target_url),
		    secret     = COALESCE(NULLIF($3, ''), secret),
		    event_type = COALESCE(NULLIF($4, ''), event_type)
		WHERE id = $1
		RETURNING id, target_url, secret, event_type, created_at`,
		id, targetURL, secret, eventType,
	).Scan(&sub.ID, &sub.TargetURL, &outSecret, &outEventType, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Subscription{}, ErrNotFound
		}
		return Subscription{}, err
	}
	sub.Secret = outSecret.String
	sub.EventType = outEventType.String
	return sub, nil
}

// Delete removes a subscription. Deleting an unknown ID is not an error.
func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM wharfhook.subscriptions WHERE id = $1`, id)
	return err
}
