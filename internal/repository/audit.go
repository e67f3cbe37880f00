package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/inkseal/inkseal/internal/model"
)

// AuditRepository is append-only: no update or delete exists by design.
type AuditRepository interface {
	// Insert appends one entry.
	Insert(ctx context.Context, e *model.AuditLogEntry) error

	// ListByDocument returns entries for a document, newest first.
	ListByDocument(ctx context.Context, docID uuid.UUID) ([]model.AuditLogEntry, error)
}
