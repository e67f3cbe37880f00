// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/inkseal/inkseal/internal/model"
)

// DocumentRepository provides owner-scoped access to document records and
// owns the document side of lifecycle transitions.
type DocumentRepository interface {
	// Create inserts a new document row. A duplicate (owner, file hash)
	// pair fails with errs.ErrAlreadyExists via a unique constraint.
	Create(ctx context.Context, d *model.Document) error

	// GetOwned loads a document scoped to its owner. Cross-owner access
	// yields errs.ErrNotFound, indistinguishable from absence.
	GetOwned(ctx context.Context, ownerID, id uuid.UUID) (*model.Document, error)

	// Get loads a document without ownership scoping. Used by the public
	// signer path, where authorization is the token, not an account.
	Get(ctx context.Context, id uuid.UUID) (*model.Document, error)

	// ListOwned returns the owner's documents, newest first.
	ListOwned(ctx context.Context, ownerID uuid.UUID) ([]model.Document, error)

	// Delete removes the row (signatures cascade). Missing or foreign rows
	// yield errs.ErrNotFound.
	Delete(ctx context.Context, ownerID, id uuid.UUID) error

	// MarkReadyToSign transitions pending -> ready_to_sign. Any other
	// current status yields errs.ErrConflict.
	MarkReadyToSign(ctx context.Context, id uuid.UUID) error

	// RevertToPending transitions ready_to_sign -> pending.
	RevertToPending(ctx context.Context, id uuid.UUID) error

	// CommitSigned atomically promotes the document to signed with the
	// artifact path and consumes the signature, in one transaction. Either
	// guard failing (document not ready_to_sign, artifact already set, or
	// signature not pending) rolls back with errs.ErrConflict.
	CommitSigned(ctx context.Context, docID, sigID uuid.UUID, signedPath string) error
}
