package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// =====================================================
// PLAN CATALOG OPERATIONS
// =====================================================

// CreatePlan inserts a new plan
func (r *Repository) CreatePlan(ctx context.Context, plan *SubscriptionPlan) error {
	query := `
		INSERT INTO subscription_plans (name, display_name, description, price, currency, duration_days, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		plan.Name, plan.DisplayName, plan.Description,
		plan.Price, plan.Currency, plan.DurationDays, plan.IsActive,
	).Scan(&plan.ID, &plan.CreatedAt, &plan.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}

	return nil
}

// GetPlanByID retrieves a plan by ID
func (r *Repository) GetPlanByID(ctx context.Context, id string) (*SubscriptionPlan, error) {
	query := `
		SELECT id, name, display_name, COALESCE(description, ''), price, currency, duration_days, is_active, created_at, updated_at
		FROM subscription_plans WHERE id = $1
	`

	plan := &SubscriptionPlan{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&plan.ID, &plan.Name, &plan.DisplayName, &plan.Description,
		&plan.Price, &plan.Currency, &plan.DurationDays, &plan.IsActive,
		&plan.CreatedAt, &plan.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	return plan, nil
}

// GetPlanByName retrieves a plan by its unique name
func (r *Repository) GetPlanByName(ctx context.Context, name string) (*SubscriptionPlan, error) {
	query := `
		SELECT id, name, display_name, COALESCE(description, ''), price, currency, duration_days, is_active, created_at, updated_at
		FROM subscription_plans WHERE name = $1
	`

	plan := &SubscriptionPlan{}
	err := r.db.Pool.QueryRow(ctx, query, name).Scan(
		&plan.ID, &plan.Name, &plan.DisplayName, &plan.Description,
		&plan.Price, &plan.Currency, &plan.DurationDays, &plan.IsActive,
		&plan.CreatedAt, &plan.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan by name: %w", err)
	}

	return plan, nil
}

// ListPlans returns plans, optionally only active ones
func (r *Repository) ListPlans(ctx context.Context, activeOnly bool) ([]*SubscriptionPlan, error) {
	query := `
		SELECT id, name, display_name, COALESCE(description, ''), price, currency, duration_days, is_active, created_at, updated_at
		FROM subscription_plans
	`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY price ASC`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []*SubscriptionPlan
	for rows.Next() {
		plan := &SubscriptionPlan{}
		err := rows.Scan(
			&plan.ID, &plan.Name, &plan.DisplayName, &plan.Description,
			&plan.Price, &plan.Currency, &plan.DurationDays, &plan.IsActive,
			&plan.CreatedAt, &plan.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, plan)
	}

	return plans, rows.Err()
}

// SetPlanActive toggles catalog visibility of a plan
func (r *Repository) SetPlanActive(ctx context.Context, id string, active bool) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE subscription_plans SET is_active = $2, updated_at = NOW() WHERE id = $1`,
		id, active,
	)
	if err != nil {
		return fmt.Errorf("failed to set plan active: %w", err)
	}
	return nil
}
