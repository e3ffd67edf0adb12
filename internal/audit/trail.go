// Package audit records security-relevant transitions in an append-only
// trail. Entries carry before/after snapshots for forensics and are never
// mutated or deleted.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"studyhall-platform/internal/database"
)

// EntryRepository is the storage dependency of the trail
type EntryRepository interface {
	CreateAuditEntry(ctx context.Context, entry *database.AuditEntry) error
}

// Trail writes audit entries for subscription and account transitions
type Trail struct {
	repo   EntryRepository
	logger zerolog.Logger
}

// NewTrail creates a new audit trail writer
func NewTrail(repo EntryRepository, logger zerolog.Logger) *Trail {
	return &Trail{
		repo:   repo,
		logger: logger.With().Str("component", "AuditTrail").Logger(),
	}
}

// Record appends one entry. Snapshots are marshalled best-effort: a snapshot
// that cannot be marshalled becomes null rather than blocking the entry.
func (t *Trail) Record(ctx context.Context, userID, entityType, entityID string, action database.AuditAction, actorID string, before, after interface{}) error {
	entry := &database.AuditEntry{
		UserID:      userID,
		EntityType:  entityType,
		EntityID:    entityID,
		Action:      action,
		ActorID:     actorID,
		BeforeState: marshalSnapshot(before),
		AfterState:  marshalSnapshot(after),
	}

	if err := t.repo.CreateAuditEntry(ctx, entry); err != nil {
		t.logger.Error().
			Err(err).
			Str("user_id", userID).
			Str("action", string(action)).
			Msg("Failed to write audit entry")
		return fmt.Errorf("failed to write audit entry: %w", err)
	}

	t.logger.Info().
		Str("user_id", userID).
		Str("entity_type", entityType).
		Str("entity_id", entityID).
		Str("action", string(action)).
		Msg("Audit entry recorded")

	return nil
}

// SubscriptionTransition records a subscription status change
func (t *Trail) SubscriptionTransition(ctx context.Context, action database.AuditAction, actorID string, before, after *database.Subscription) error {
	if after == nil {
		return fmt.Errorf("audit: missing after snapshot")
	}
	return t.Record(ctx, after.UserID, "subscription", after.ID, action, actorID, before, after)
}

// BanChange records a ban or unban of a user account
func (t *Trail) BanChange(ctx context.Context, actorID string, before, after *database.User) error {
	if after == nil {
		return fmt.Errorf("audit: missing after snapshot")
	}
	action := database.AuditUserBanned
	if !after.Banned {
		action = database.AuditUserUnbanned
	}
	return t.Record(ctx, after.ID, "user", after.ID, action, actorID, before, after)
}

func marshalSnapshot(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
