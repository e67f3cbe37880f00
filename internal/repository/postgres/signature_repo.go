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

// SignatureRepo implements SignatureRepository using PostgreSQL.
type SignatureRepo struct{ db *DB }

// NewSignatureRepo constructs a signature repository.
func NewSignatureRepo(db *DB) *SignatureRepo { return &SignatureRepo{db: db} }

const signatureCols = `id, document_id, signer_kind, signer_ref, page_number, x_percent, y_percent, status,
COALESCE(expires_at,'epoch'), COALESCE(email_hash,''::bytea), COALESCE(email_hint,''), created_at`

func scanSignature(row pgx.Row) (*model.Signature, error) {
	var s model.Signature
	err := row.Scan(&s.ID, &s.DocumentID, &s.SignerKind, &s.SignerRef, &s.PageNumber,
		&s.XPercent, &s.YPercent, &s.Status, &s.ExpiresAt, &s.EmailHash, &s.EmailHint, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("scan signature: %w: %w", errs.ErrDependency, err)
	}
	return &s, nil
}

// Create inserts a placeholder and moves a pending document to
// ready_to_sign in the same transaction. The document row is locked for the
// duration so the status guard cannot race with finalize or delete.
func (r *SignatureRepo) Create(ctx context.Context, s *model.Signature) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin create signature: %w: %w", errs.ErrDependency, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = fmt.Errorf("commit create signature: %w: %w", errs.ErrDependency, e)
		}
	}()

	const sel = `SELECT status FROM documents WHERE id=$1 FOR UPDATE`
	var status model.DocumentStatus
	if err = tx.QueryRow(ctx, sel, s.DocumentID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrNotFound
		}
		return fmt.Errorf("lock document: %w: %w", errs.ErrDependency, err)
	}
	if s.SignerKind == model.SignerInternal {
		err = status.CanAcceptInternalPlaceholder()
	} else {
		err = status.CanAcceptPlaceholder()
	}
	if err != nil {
		return err
	}

	// Email binding columns stay NULL for internal signers.
	var expires, emailHash, emailHint any
	if s.SignerKind == model.SignerPublic {
		expires, emailHash, emailHint = s.ExpiresAt, s.EmailHash, s.EmailHint
	}
	const ins = `
INSERT INTO signatures (id, document_id, signer_kind, signer_ref, page_number, x_percent, y_percent, status, expires_at, email_hash, email_hint)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err = tx.Exec(ctx, ins, s.ID, s.DocumentID, s.SignerKind, s.SignerRef, s.PageNumber,
		s.XPercent, s.YPercent, s.Status, expires, emailHash, emailHint)
	if isUniqueViolation(err) {
		return fmt.Errorf("signature placeholder: %w", errs.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert signature: %w: %w", errs.ErrDependency, err)
	}

	if status == model.DocumentPending {
		const upd = `UPDATE documents SET status=$2 WHERE id=$1`
		if _, err = tx.Exec(ctx, upd, s.DocumentID, model.DocumentReadyToSign); err != nil {
			return fmt.Errorf("mark ready to sign: %w: %w", errs.ErrDependency, err)
		}
	}
	return nil
}

// Get selects a signature by ID.
func (r *SignatureRepo) Get(ctx context.Context, id uuid.UUID) (*model.Signature, error) {
	q := `SELECT ` + signatureCols + ` FROM signatures WHERE id=$1`
	return scanSignature(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByToken resolves a public signature by bearer token.
func (r *SignatureRepo) GetByToken(ctx context.Context, tok string) (*model.Signature, error) {
	q := `SELECT ` + signatureCols + ` FROM signatures WHERE signer_kind=$1 AND signer_ref=$2`
	return scanSignature(r.db.Pool.QueryRow(ctx, q, model.SignerPublic, tok))
}

// GetInternal resolves the internal placeholder of (document, owner).
func (r *SignatureRepo) GetInternal(ctx context.Context, docID uuid.UUID, ownerRef string) (*model.Signature, error) {
	q := `SELECT ` + signatureCols + ` FROM signatures WHERE document_id=$1 AND signer_kind=$2 AND signer_ref=$3`
	return scanSignature(r.db.Pool.QueryRow(ctx, q, docID, model.SignerInternal, ownerRef))
}

// ListByDocument returns all signatures of a document, oldest first.
func (r *SignatureRepo) ListByDocument(ctx context.Context, docID uuid.UUID) ([]model.Signature, error) {
	q := `SELECT ` + signatureCols + ` FROM signatures WHERE document_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Pool.Query(ctx, q, docID)
	if err != nil {
		return nil, fmt.Errorf("list signatures: %w: %w", errs.ErrDependency, err)
	}
	defer rows.Close()

	var out []model.Signature
	for rows.Next() {
		var s model.Signature
		if err = rows.Scan(&s.ID, &s.DocumentID, &s.SignerKind, &s.SignerRef, &s.PageNumber,
			&s.XPercent, &s.YPercent, &s.Status, &s.ExpiresAt, &s.EmailHash, &s.EmailHint, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan signature: %w: %w", errs.ErrDependency, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeletePending removes a pending signature and reverts the document to
// pending when no placeholder remains. One transaction; a finalize racing
// with the delete observes either the consumed signature or its absence,
// never both outcomes.
func (r *SignatureRepo) DeletePending(ctx context.Context, id uuid.UUID) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin delete signature: %w: %w", errs.ErrDependency, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = fmt.Errorf("commit delete signature: %w: %w", errs.ErrDependency, e)
		}
	}()

	const sel = `SELECT document_id, status FROM signatures WHERE id=$1 FOR UPDATE`
	var docID uuid.UUID
	var status model.SignatureStatus
	if err = tx.QueryRow(ctx, sel, id).Scan(&docID, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrNotFound
		}
		return fmt.Errorf("lock signature: %w: %w", errs.ErrDependency, err)
	}
	if status == model.SignatureSigned {
		return fmt.Errorf("signature already consumed: %w", errs.ErrConflict)
	}

	const del = `DELETE FROM signatures WHERE id=$1`
	if _, err = tx.Exec(ctx, del, id); err != nil {
		return fmt.Errorf("delete signature: %w: %w", errs.ErrDependency, err)
	}

	const cnt = `SELECT COUNT(*) FROM signatures WHERE document_id=$1`
	var remaining int64
	if err = tx.QueryRow(ctx, cnt, docID).Scan(&remaining); err != nil {
		return fmt.Errorf("count signatures: %w: %w", errs.ErrDependency, err)
	}
	if remaining == 0 {
		const upd = `UPDATE documents SET status=$2 WHERE id=$1 AND status=$3`
		if _, err = tx.Exec(ctx, upd, docID, model.DocumentPending, model.DocumentReadyToSign); err != nil {
			return fmt.Errorf("revert document: %w: %w", errs.ErrDependency, err)
		}
	}
	return nil
}
