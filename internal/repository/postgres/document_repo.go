package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/inkseal/inkseal/internal/errs"
	"github.com/inkseal/inkseal/internal/model"
)

// DocumentRepo implements DocumentRepository using PostgreSQL.
type DocumentRepo struct{ db *DB }

// NewDocumentRepo constructs a document repository.
func NewDocumentRepo(db *DB) *DocumentRepo { return &DocumentRepo{db: db} }

const documentCols = `id, owner_id, title, original_path, COALESCE(signed_path,''), file_hash, status, created_at`

func scanDocument(row pgx.Row) (*model.Document, error) {
	var d model.Document
	err := row.Scan(&d.ID, &d.OwnerID, &d.Title, &d.OriginalPath, &d.SignedPath, &d.FileHash, &d.Status, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("scan document: %w: %w", errs.ErrDependency, err)
	}
	return &d, nil
}

// Create inserts a new document row. The (owner_id, file_hash) unique
// constraint makes the per-owner duplicate check race-free.
func (r *DocumentRepo) Create(ctx context.Context, d *model.Document) error {
	const q = `
INSERT INTO documents (id, owner_id, title, original_path, file_hash, status)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Pool.Exec(ctx, q, d.ID, d.OwnerID, d.Title, d.OriginalPath, d.FileHash, d.Status)
	if isUniqueViolation(err) {
		return fmt.Errorf("document with same content: %w", errs.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert document: %w: %w", errs.ErrDependency, err)
	}
	return nil
}

// GetOwned selects a document scoped to its owner.
func (r *DocumentRepo) GetOwned(ctx context.Context, ownerID, id uuid.UUID) (*model.Document, error) {
	q := `SELECT ` + documentCols + ` FROM documents WHERE id=$1 AND owner_id=$2`
	return scanDocument(r.db.Pool.QueryRow(ctx, q, id, ownerID))
}

// Get selects a document by ID without ownership scoping.
func (r *DocumentRepo) Get(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	q := `SELECT ` + documentCols + ` FROM documents WHERE id=$1`
	return scanDocument(r.db.Pool.QueryRow(ctx, q, id))
}

// ListOwned returns the owner's documents, newest first.
func (r *DocumentRepo) ListOwned(ctx context.Context, ownerID uuid.UUID) ([]model.Document, error) {
	q := `SELECT ` + documentCols + ` FROM documents WHERE owner_id=$1 ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w: %w", errs.ErrDependency, err)
	}
	defer rows.Close()

	var out []model.Document
	for rows.Next() {
		var d model.Document
		if err = rows.Scan(&d.ID, &d.OwnerID, &d.Title, &d.OriginalPath, &d.SignedPath, &d.FileHash, &d.Status, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w: %w", errs.ErrDependency, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Delete removes the row; signatures cascade via FK.
func (r *DocumentRepo) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	const q = `DELETE FROM documents WHERE id=$1 AND owner_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete document: %w: %w", errs.ErrDependency, err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// MarkReadyToSign transitions pending -> ready_to_sign. The status predicate
// in the UPDATE makes the transition race-free: a concurrent transition
// leaves zero rows affected and surfaces as a conflict.
func (r *DocumentRepo) MarkReadyToSign(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx, id, model.DocumentPending, model.DocumentReadyToSign)
}

// RevertToPending transitions ready_to_sign -> pending.
func (r *DocumentRepo) RevertToPending(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx, id, model.DocumentReadyToSign, model.DocumentPending)
}

func (r *DocumentRepo) transition(ctx context.Context, id uuid.UUID, from, to model.DocumentStatus) error {
	const q = `UPDATE documents SET status=$3 WHERE id=$1 AND status=$2`
	tag, err := r.db.Pool.Exec(ctx, q, id, from, to)
	if err != nil {
		return fmt.Errorf("transition document: %w: %w", errs.ErrDependency, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document not in status %q: %w", from, errs.ErrConflict)
	}
	return nil
}

// CommitSigned is the single atomic commit of the finalize protocol: both
// rows flip state in one transaction or neither does.
func (r *DocumentRepo) CommitSigned(ctx context.Context, docID, sigID uuid.UUID, signedPath string) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin commit: %w: %w", errs.ErrDependency, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = fmt.Errorf("commit signed: %w: %w", errs.ErrDependency, e)
		}
	}()

	const updDoc = `
UPDATE documents SET status=$2, signed_path=$3
WHERE id=$1 AND status=$4 AND signed_path IS NULL`
	tag, err := tx.Exec(ctx, updDoc, docID, model.DocumentSigned, signedPath, model.DocumentReadyToSign)
	if err != nil {
		return fmt.Errorf("promote document: %w: %w", errs.ErrDependency, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document not ready to sign or already signed: %w", errs.ErrConflict)
	}

	const updSig = `UPDATE signatures SET status=$2 WHERE id=$1 AND status=$3`
	tag, err = tx.Exec(ctx, updSig, sigID, model.SignatureSigned, model.SignaturePending)
	if err != nil {
		return fmt.Errorf("consume signature: %w: %w", errs.ErrDependency, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("signature already consumed or deleted: %w", errs.ErrConflict)
	}
	return nil
}
