package database

import (
	"encoding/json"
	"time"
)

// AuditAction identifies a security-relevant transition
type AuditAction string

const (
	AuditSubscriptionActivated AuditAction = "subscription_activated"
	AuditSubscriptionFailed    AuditAction = "subscription_failed"
	AuditSubscriptionExpired   AuditAction = "subscription_expired"
	AuditSubscriptionCancelled AuditAction = "subscription_cancelled"
	AuditUserBanned            AuditAction = "user_banned"
	AuditUserUnbanned          AuditAction = "user_unbanned"
	AuditAdminOverride         AuditAction = "admin_override"
)

// AuditEntry is an append-only forensic record of a state transition.
// Entries are never mutated or deleted.
type AuditEntry struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	EntityType  string          `json:"entity_type"`
	EntityID    string          `json:"entity_id"`
	Action      AuditAction     `json:"action"`
	ActorID     string          `json:"actor_id,omitempty"` // Empty for system transitions
	BeforeState json.RawMessage `json:"before_state,omitempty"`
	AfterState  json.RawMessage `json:"after_state,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
