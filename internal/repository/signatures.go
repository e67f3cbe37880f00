package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/inkseal/inkseal/internal/model"
)

// SignatureRepository provides access to signature placeholders.
type SignatureRepository interface {
	// Create inserts a placeholder and, when the document is still pending,
	// moves it to ready_to_sign — one transaction, guarded by the current
	// document status. A second internal placeholder for the same
	// (document, signer) fails with errs.ErrAlreadyExists via a partial
	// unique index, not an application-level check.
	Create(ctx context.Context, s *model.Signature) error

	// Get loads a signature by ID.
	Get(ctx context.Context, id uuid.UUID) (*model.Signature, error)

	// GetByToken resolves a public signature by its bearer token.
	GetByToken(ctx context.Context, tok string) (*model.Signature, error)

	// GetInternal resolves the internal placeholder of (document, owner).
	GetInternal(ctx context.Context, docID uuid.UUID, ownerRef string) (*model.Signature, error)

	// ListByDocument returns all signatures of a document, oldest first.
	ListByDocument(ctx context.Context, docID uuid.UUID) ([]model.Signature, error)

	// DeletePending removes a pending signature and, when it was the
	// document's last placeholder, reverts the document to pending — one
	// transaction. A signed signature yields errs.ErrConflict, a missing
	// one errs.ErrNotFound.
	DeletePending(ctx context.Context, id uuid.UUID) error
}
