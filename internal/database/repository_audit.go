package database

import (
	"context"
	"fmt"
)

// =====================================================
// AUDIT LOG OPERATIONS (append-only)
// =====================================================

// CreateAuditEntry appends an audit entry. There is deliberately no update or
// delete counterpart.
func (r *Repository) CreateAuditEntry(ctx context.Context, entry *AuditEntry) error {
	query := `
		INSERT INTO audit_log (user_id, entity_type, entity_id, action, actor_id, before_state, after_state)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		entry.UserID, entry.EntityType, entry.EntityID, entry.Action,
		entry.ActorID, entry.BeforeState, entry.AfterState,
	).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	return nil
}

// GetUserAuditEntries returns a user's audit trail, newest first
func (r *Repository) GetUserAuditEntries(ctx context.Context, userID string, limit int) ([]*AuditEntry, error) {
	query := `
		SELECT id, user_id, entity_type, entity_id, action, COALESCE(actor_id, ''), before_state, after_state, created_at
		FROM audit_log
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		entry := &AuditEntry{}
		err := rows.Scan(
			&entry.ID, &entry.UserID, &entry.EntityType, &entry.EntityID,
			&entry.Action, &entry.ActorID, &entry.BeforeState, &entry.AfterState,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
