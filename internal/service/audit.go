// Package service contains application services for the document-signing lifecycle.
package service

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/inkseal/inkseal/internal/model"
	"github.com/inkseal/inkseal/internal/repository"
)

// Event is one attributable, state-changing action to append to the trail.
type Event struct {
	DocumentID uuid.UUID
	ActorKind  model.ActorKind
	ActorRef   string
	Action     model.AuditAction
	IPAddress  string
}

// Recorder appends audit events and reads the trail back.
type Recorder interface {
	// Record appends one entry. The write is best-effort from the primary
	// operation's point of view: its failure never rolls the operation
	// back, but it is surfaced, not swallowed.
	Record(ctx context.Context, ev Event)
	// ListFor returns a document's trail, newest first.
	ListFor(ctx context.Context, docID uuid.UUID) ([]model.AuditLogEntry, error)
}

// AuditRecorder implements Recorder over an append-only repository.
type AuditRecorder struct {
	repo repository.AuditRepository
	log  *zap.Logger
}

// NewAuditRecorder constructs a Recorder.
func NewAuditRecorder(repo repository.AuditRepository, log *zap.Logger) *AuditRecorder {
	return &AuditRecorder{repo: repo, log: log}
}

// Record appends one entry. A failed write is logged at Error level with a
// stable marker field; trail completeness is a product guarantee, so these
// lines are the operational alarm hook.
func (r *AuditRecorder) Record(ctx context.Context, ev Event) {
	entry := &model.AuditLogEntry{
		DocumentID: ev.DocumentID,
		ActorKind:  ev.ActorKind,
		ActorRef:   ev.ActorRef,
		Action:     ev.Action,
		IPAddress:  ev.IPAddress,
	}
	// The primary operation already committed; a canceled request context
	// must not drop its trail entry.
	if err := r.repo.Insert(context.WithoutCancel(ctx), entry); err != nil {
		r.log.Error("audit write failed",
			zap.Bool("audit_failure", true),
			zap.String("document_id", ev.DocumentID.String()),
			zap.String("action", string(ev.Action)),
			zap.Error(err),
		)
	}
}

// ListFor returns a document's trail, newest first.
func (r *AuditRecorder) ListFor(ctx context.Context, docID uuid.UUID) ([]model.AuditLogEntry, error) {
	return r.repo.ListByDocument(ctx, docID)
}
