package database

import (
	"time"
)

// SubscriptionStatus is the persisted lifecycle status of a subscription.
// Richer request-time tiers (grace period, access denied) are derived, never
// stored.
type SubscriptionStatus string

const (
	StatusTrial     SubscriptionStatus = "trial"
	StatusActive    SubscriptionStatus = "active"
	StatusExpired   SubscriptionStatus = "expired"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusPaused    SubscriptionStatus = "paused" // Payment pending, grants no access
)

// Terminal reports whether a status can never transition again
func (s SubscriptionStatus) Terminal() bool {
	return s == StatusExpired || s == StatusCancelled
}

// Subscription represents one billing lifecycle for a user. A user may have
// many historical rows; at most one may be in {trial, active, paused} once
// activation has run. Rows are never deleted.
type Subscription struct {
	ID            string             `json:"id"`
	UserID        string             `json:"user_id"`
	PlanID        string             `json:"plan_id,omitempty"`
	Status        SubscriptionStatus `json:"status"`
	StartDate     *time.Time         `json:"start_date,omitempty"`
	EndDate       *time.Time         `json:"end_date,omitempty"`
	TrialStart    *time.Time         `json:"trial_start,omitempty"`
	TrialEnd      *time.Time         `json:"trial_end,omitempty"`
	OrderID       string             `json:"order_id,omitempty"`   // Payment-provider order id
	PaymentID     string             `json:"payment_id,omitempty"` // Payment-provider payment id
	EventSequence int64              `json:"event_sequence"`       // Last processed webhook sequence
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// SubscriptionPlan is a catalog entry referenced, never owned, by subscriptions
type SubscriptionPlan struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	DisplayName  string    `json:"display_name"`
	Description  string    `json:"description,omitempty"`
	Price        float64   `json:"price"`
	Currency     string    `json:"currency"`
	DurationDays int       `json:"duration_days"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
