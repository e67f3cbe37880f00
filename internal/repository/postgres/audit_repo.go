package postgres

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/inkseal/inkseal/internal/errs"
	"github.com/inkseal/inkseal/internal/model"
)

// AuditRepo implements AuditRepository using PostgreSQL. The table is
// append-only; this type deliberately has no update or delete method.
type AuditRepo struct{ db *DB }

// NewAuditRepo constructs an audit repository.
func NewAuditRepo(db *DB) *AuditRepo { return &AuditRepo{db: db} }

// Insert appends one entry.
func (r *AuditRepo) Insert(ctx context.Context, e *model.AuditLogEntry) error {
	const q = `
INSERT INTO audit_logs (document_id, actor_kind, actor_ref, action, ip_address)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Pool.Exec(ctx, q, e.DocumentID, e.ActorKind, e.ActorRef, e.Action, e.IPAddress)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w: %w", errs.ErrDependency, err)
	}
	return nil
}

// ListByDocument returns entries for a document, newest first.
func (r *AuditRepo) ListByDocument(ctx context.Context, docID uuid.UUID) ([]model.AuditLogEntry, error) {
	const q = `
SELECT id, document_id, actor_kind, actor_ref, action, COALESCE(ip_address,''), created_at
FROM audit_logs WHERE document_id=$1 ORDER BY created_at DESC, id DESC`
	rows, err := r.db.Pool.Query(ctx, q, docID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w: %w", errs.ErrDependency, err)
	}
	defer rows.Close()

	var out []model.AuditLogEntry
	for rows.Next() {
		var e model.AuditLogEntry
		if err = rows.Scan(&e.ID, &e.DocumentID, &e.ActorKind, &e.ActorRef, &e.Action, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w: %w", errs.ErrDependency, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
