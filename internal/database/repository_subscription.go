package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// =====================================================
// SUBSCRIPTION OPERATIONS
// =====================================================

const subscriptionColumns = `
	id, user_id, COALESCE(plan_id::text, ''), status,
	start_date, end_date, trial_start, trial_end,
	COALESCE(order_id, ''), COALESCE(payment_id, ''), event_sequence,
	created_at, updated_at
`

func scanSubscription(row pgx.Row) (*Subscription, error) {
	sub := &Subscription{}
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.PlanID, &sub.Status,
		&sub.StartDate, &sub.EndDate, &sub.TrialStart, &sub.TrialEnd,
		&sub.OrderID, &sub.PaymentID, &sub.EventSequence,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// CreateSubscription inserts a new subscription row
func (r *Repository) CreateSubscription(ctx context.Context, sub *Subscription) error {
	query := `
		INSERT INTO subscriptions (user_id, plan_id, status, start_date, end_date, trial_start, trial_end, order_id, payment_id)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''))
		RETURNING id, created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		sub.UserID, sub.PlanID, sub.Status,
		sub.StartDate, sub.EndDate, sub.TrialStart, sub.TrialEnd,
		sub.OrderID, sub.PaymentID,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	return nil
}

// GetSubscriptionByID retrieves a subscription by ID
func (r *Repository) GetSubscriptionByID(ctx context.Context, id string) (*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`

	sub, err := scanSubscription(r.db.Pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return sub, nil
}

// GetSubscriptionByOrderID retrieves a subscription by its payment-provider
// order id. Returns (nil, nil) when no row matches.
func (r *Repository) GetSubscriptionByOrderID(ctx context.Context, orderID string) (*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE order_id = $1`

	sub, err := scanSubscription(r.db.Pool.QueryRow(ctx, query, orderID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription by order id: %w", err)
	}

	return sub, nil
}

// GetUserSubscriptions returns all subscription rows for a user, newest first
func (r *Repository) GetUserSubscriptions(ctx context.Context, userID string) ([]*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

// UpdateSubscriptionStatus sets the status of a single subscription row
func (r *Repository) UpdateSubscriptionStatus(ctx context.Context, id string, status SubscriptionStatus) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE subscriptions SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription status: %w", err)
	}
	return nil
}

// MarkSubscriptionFailed marks a payment-pending subscription as expired and
// records the webhook sequence that reported the failure
func (r *Repository) MarkSubscriptionFailed(ctx context.Context, id string, sequence int64) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE subscriptions SET status = $2, event_sequence = $3, updated_at = NOW() WHERE id = $1`,
		id, StatusExpired, sequence,
	)
	if err != nil {
		return fmt.Errorf("failed to mark subscription failed: %w", err)
	}
	return nil
}

// ActivateSubscription performs the durable activation transition in a single
// transaction: every other trial/active/paused row for the user is demoted to
// cancelled, then the target row becomes active with the supplied dates and
// payment id. The two writes commit atomically so no reader ever sees two
// concurrently active rows for one user.
//
// Returns the ids of the demoted siblings so the caller can audit them.
func (r *Repository) ActivateSubscription(ctx context.Context, sub *Subscription, sequence int64) ([]string, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		UPDATE subscriptions SET status = $3, updated_at = NOW()
		WHERE user_id = $1 AND id <> $2 AND status IN ($4, $5, $6)
		RETURNING id
	`, sub.UserID, sub.ID, StatusCancelled, StatusTrial, StatusActive, StatusPaused)
	if err != nil {
		return nil, fmt.Errorf("failed to demote sibling subscriptions: %w", err)
	}

	var demoted []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan demoted id: %w", err)
		}
		demoted = append(demoted, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to demote sibling subscriptions: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE subscriptions
		SET status = $2, start_date = $3, end_date = $4,
			payment_id = NULLIF($5, ''), event_sequence = $6, updated_at = NOW()
		WHERE id = $1
	`, sub.ID, StatusActive, sub.StartDate, sub.EndDate, sub.PaymentID, sequence)
	if err != nil {
		return nil, fmt.Errorf("failed to activate subscription: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit activation: %w", err)
	}

	return demoted, nil
}

// ExpireOverdueSubscriptions moves trial rows past their trial end and active
// rows past their end date to expired. Returns the transitioned rows so the
// sweep can write audit entries and refresh checkpoints.
func (r *Repository) ExpireOverdueSubscriptions(ctx context.Context, now time.Time) ([]*Subscription, error) {
	query := `
		UPDATE subscriptions SET status = $1, updated_at = NOW()
		WHERE (status = $2 AND trial_end IS NOT NULL AND trial_end < $4)
		   OR (status = $3 AND end_date IS NOT NULL AND end_date < $4)
		RETURNING ` + subscriptionColumns

	rows, err := r.db.Pool.Query(ctx, query, StatusExpired, StatusTrial, StatusActive, now)
	if err != nil {
		return nil, fmt.Errorf("failed to expire overdue subscriptions: %w", err)
	}
	defer rows.Close()

	var expired []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expired subscription: %w", err)
		}
		expired = append(expired, sub)
	}

	return expired, rows.Err()
}
