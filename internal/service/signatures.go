package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/inkseal/inkseal/internal/crypto"
	"github.com/inkseal/inkseal/internal/errs"
	"github.com/inkseal/inkseal/internal/limiter"
	"github.com/inkseal/inkseal/internal/model"
	"github.com/inkseal/inkseal/internal/repository"
	"github.com/inkseal/inkseal/internal/storage"
	"github.com/inkseal/inkseal/internal/token"
)

// PublicSignatureView is what a token holder may learn about their slot.
// The signer email never appears in clear, only as the masked hint.
type PublicSignatureView struct {
	SignatureID   uuid.UUID
	DocumentID    uuid.UUID
	DocumentTitle string
	PageNumber    int
	XPercent      float64
	YPercent      float64
	Status        model.SignatureStatus
	EmailHint     string
	ExpiresAt     time.Time
	EmailVerified bool
}

// PublicDownloadKind selects which artifact a public signer downloads.
type PublicDownloadKind string

const (
	PublicDownloadOriginal PublicDownloadKind = "original"
	PublicDownloadSigned   PublicDownloadKind = "signed"
)

// SignatureService owns placeholder creation, per-signer uniqueness and
// token-authorized public access.
type SignatureService interface {
	// PlaceInternal attaches the owner's own placeholder to a document.
	PlaceInternal(ctx context.Context, ownerID, docID uuid.UUID, page int, xPct, yPct float64, ip string) (*model.Signature, error)
	// PlacePublic attaches a placeholder for an external signer and returns
	// the shareable link embedding the bearer token.
	PlacePublic(ctx context.Context, ownerID, docID uuid.UUID, page int, xPct, yPct float64, signerEmail, ip string) (*model.Signature, string, error)
	// List returns all signatures on an owned document, oldest first.
	List(ctx context.Context, ownerID, docID uuid.UUID) ([]model.Signature, error)
	// FetchPublic resolves a token into a view; with an email supplied the
	// stored hash is verified, otherwise only the masked hint is revealed.
	FetchPublic(ctx context.Context, tok, email, ip string) (*PublicSignatureView, error)
	// DownloadPublic serves an artifact to a verified token holder.
	DownloadPublic(ctx context.Context, tok, email string, kind PublicDownloadKind, ip string) ([]byte, string, error)
	// Delete removes a pending placeholder; consumed ones are immutable evidence.
	Delete(ctx context.Context, ownerID, sigID uuid.UUID, ip string) error
}

type SignatureServiceImpl struct {
	docs    repository.DocumentRepository
	sigs    repository.SignatureRepository
	blobs   storage.BlobStore
	audit   Recorder
	lim     limiter.Limiter
	log     *zap.Logger
	baseURL string
	now     func() time.Time
}

// NewSignatureService constructs SignatureService with required dependencies.
// baseURL is the externally reachable prefix that public links are built on.
func NewSignatureService(
	docs repository.DocumentRepository,
	sigs repository.SignatureRepository,
	blobs storage.BlobStore,
	audit Recorder,
	lim limiter.Limiter,
	log *zap.Logger,
	baseURL string,
) *SignatureServiceImpl {
	return &SignatureServiceImpl{
		docs: docs, sigs: sigs, blobs: blobs, audit: audit,
		lim: lim, log: log, baseURL: baseURL, now: time.Now,
	}
}

func validPlacement(page int, xPct, yPct float64) error {
	if page < 1 {
		return fmt.Errorf("page number must be >= 1: %w", errs.ErrValidation)
	}
	if xPct < 0 || xPct > 100 {
		return fmt.Errorf("x coordinate must be within [0,100]: %w", errs.ErrValidation)
	}
	if yPct < 0 || yPct > 100 {
		return fmt.Errorf("y coordinate must be within [0,100]: %w", errs.ErrValidation)
	}
	return nil
}

// PlaceInternal creates the owner's own placeholder on a pending document.
// Per-document internal uniqueness rides on the repository's partial unique
// index, so two concurrent calls cannot both succeed.
func (s *SignatureServiceImpl) PlaceInternal(ctx context.Context, ownerID, docID uuid.UUID, page int, xPct, yPct float64, ip string) (*model.Signature, error) {
	if ownerID == uuid.Nil || docID == uuid.Nil {
		return nil, fmt.Errorf("empty owner/document: %w", errs.ErrValidation)
	}
	if err := validPlacement(page, xPct, yPct); err != nil {
		return nil, err
	}

	doc, err := s.docs.GetOwned(ctx, ownerID, docID)
	if err != nil {
		return nil, err
	}
	if err := doc.Status.CanAcceptInternalPlaceholder(); err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	sig := &model.Signature{
		ID:         id,
		DocumentID: docID,
		SignerKind: model.SignerInternal,
		SignerRef:  ownerID.String(),
		PageNumber: page,
		XPercent:   xPct,
		YPercent:   yPct,
		Status:     model.SignaturePending,
	}
	if err := s.sigs.Create(ctx, sig); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return nil, fmt.Errorf("signature placeholder already exists: %w", errs.ErrConflict)
		}
		return nil, err
	}

	s.audit.Record(ctx, Event{
		DocumentID: docID,
		ActorKind:  model.ActorInternal,
		ActorRef:   ownerID.String(),
		Action:     model.ActionPlaceholderCreated,
		IPAddress:  ip,
	})
	return sig, nil
}

// PlacePublic creates a placeholder bound to an external signer's email and
// returns the link carrying the bearer token.
func (s *SignatureServiceImpl) PlacePublic(ctx context.Context, ownerID, docID uuid.UUID, page int, xPct, yPct float64, signerEmail, ip string) (*model.Signature, string, error) {
	if ownerID == uuid.Nil || docID == uuid.Nil {
		return nil, "", fmt.Errorf("empty owner/document: %w", errs.ErrValidation)
	}
	if err := validPlacement(page, xPct, yPct); err != nil {
		return nil, "", err
	}
	if !crypto.ValidEmail(signerEmail) {
		return nil, "", fmt.Errorf("invalid email format: %w", errs.ErrValidation)
	}

	doc, err := s.docs.GetOwned(ctx, ownerID, docID)
	if err != nil {
		return nil, "", err
	}
	if err := doc.Status.CanAcceptPlaceholder(); err != nil {
		return nil, "", err
	}

	tok, err := token.Issue()
	if err != nil {
		return nil, "", err
	}
	emailHash, err := crypto.HashEmail(signerEmail)
	if err != nil {
		return nil, "", err
	}
	hint, err := crypto.MaskEmail(signerEmail)
	if err != nil {
		return nil, "", err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, "", err
	}

	sig := &model.Signature{
		ID:         id,
		DocumentID: docID,
		SignerKind: model.SignerPublic,
		SignerRef:  tok,
		PageNumber: page,
		XPercent:   xPct,
		YPercent:   yPct,
		Status:     model.SignaturePending,
		ExpiresAt:  token.ExpiryFor(s.now()),
		EmailHash:  emailHash,
		EmailHint:  hint,
	}
	if err := s.sigs.Create(ctx, sig); err != nil {
		return nil, "", err
	}

	s.audit.Record(ctx, Event{
		DocumentID: docID,
		ActorKind:  model.ActorInternal,
		ActorRef:   ownerID.String(),
		Action:     model.ActionPublicLinkCreated,
		IPAddress:  ip,
	})
	return sig, s.baseURL + "/sign/" + tok, nil
}

// List returns every signature attached to an owned document, oldest first.
func (s *SignatureServiceImpl) List(ctx context.Context, ownerID, docID uuid.UUID) ([]model.Signature, error) {
	if ownerID == uuid.Nil || docID == uuid.Nil {
		return nil, fmt.Errorf("empty owner/document: %w", errs.ErrValidation)
	}
	if _, err := s.docs.GetOwned(ctx, ownerID, docID); err != nil {
		return nil, err
	}
	return s.sigs.ListByDocument(ctx, docID)
}

// resolvePublic authenticates a token holder: rate-limit gate, token
// lookup, then optional email verification against the stored hash.
func (s *SignatureServiceImpl) resolvePublic(ctx context.Context, tok, email, ip string) (*model.Signature, bool, error) {
	if tok == "" {
		return nil, false, fmt.Errorf("empty token: %w", errs.ErrValidation)
	}
	ipHash := limiter.HashIP(ip)
	allowed, retryAfter, err := s.lim.Allow(ctx, tok, ipHash)
	if err != nil {
		return nil, false, fmt.Errorf("limiter: %w: %w", errs.ErrDependency, err)
	}
	if !allowed {
		return nil, false, fmt.Errorf("retry after %s: %w", retryAfter, errs.ErrRateLimited)
	}

	sig, err := s.sigs.GetByToken(ctx, tok)
	if err != nil {
		return nil, false, err
	}

	verified := false
	if email != "" {
		if !crypto.ValidEmail(email) {
			return nil, false, fmt.Errorf("invalid email format: %w", errs.ErrValidation)
		}
		if !crypto.VerifyEmail(email, sig.EmailHash) {
			if blocked, _, ferr := s.lim.Failure(ctx, tok, ipHash); ferr == nil && blocked {
				return nil, false, fmt.Errorf("too many attempts: %w", errs.ErrRateLimited)
			}
			return nil, false, fmt.Errorf("email does not match intended signer: %w", errs.ErrForbidden)
		}
		_ = s.lim.Success(ctx, tok, ipHash)
		verified = true
	}
	return sig, verified, nil
}

// FetchPublic resolves a token into a view. Expired links are rejected even
// while the signature is still pending; consumed slots stay viewable until
// expiry so the signer can confirm the outcome.
func (s *SignatureServiceImpl) FetchPublic(ctx context.Context, tok, email, ip string) (*PublicSignatureView, error) {
	sig, verified, err := s.resolvePublic(ctx, tok, email, ip)
	if err != nil {
		return nil, err
	}
	if s.now().After(sig.ExpiresAt) {
		return nil, fmt.Errorf("signature link: %w", errs.ErrExpired)
	}

	doc, err := s.docs.Get(ctx, sig.DocumentID)
	if err != nil {
		return nil, err
	}
	return &PublicSignatureView{
		SignatureID:   sig.ID,
		DocumentID:    doc.ID,
		DocumentTitle: doc.Title,
		PageNumber:    sig.PageNumber,
		XPercent:      sig.XPercent,
		YPercent:      sig.YPercent,
		Status:        sig.Status,
		EmailHint:     sig.EmailHint,
		ExpiresAt:     sig.ExpiresAt,
		EmailVerified: verified,
	}, nil
}

// DownloadPublic serves an artifact to a token holder with a matching
// email. The original is served only while the slot is still consumable;
// the signed artifact is served after signing, until the link expires.
func (s *SignatureServiceImpl) DownloadPublic(ctx context.Context, tok, email string, kind PublicDownloadKind, ip string) ([]byte, string, error) {
	if kind != PublicDownloadOriginal && kind != PublicDownloadSigned {
		return nil, "", fmt.Errorf("invalid document type %q: %w", kind, errs.ErrValidation)
	}
	if email == "" {
		return nil, "", fmt.Errorf("email is required: %w", errs.ErrValidation)
	}
	sig, _, err := s.resolvePublic(ctx, tok, email, ip)
	if err != nil {
		return nil, "", err
	}
	if s.now().After(sig.ExpiresAt) {
		return nil, "", fmt.Errorf("signature link: %w", errs.ErrExpired)
	}

	doc, err := s.docs.Get(ctx, sig.DocumentID)
	if err != nil {
		return nil, "", err
	}

	var path, name string
	switch kind {
	case PublicDownloadOriginal:
		if err := sig.CanConsume(s.now()); err != nil {
			return nil, "", err
		}
		if err := doc.Status.CanAcceptPlaceholder(); err != nil {
			return nil, "", err
		}
		path, name = doc.OriginalPath, doc.Title
	case PublicDownloadSigned:
		if doc.SignedPath == "" {
			return nil, "", fmt.Errorf("signed document version not available yet: %w", errs.ErrNotFound)
		}
		path, name = doc.SignedPath, doc.Title+"_signed"
	}

	data, err := s.blobs.Get(ctx, path)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s artifact: %w: %w", kind, errs.ErrDependency, err)
	}

	s.audit.Record(ctx, Event{
		DocumentID: doc.ID,
		ActorKind:  model.ActorPublic,
		ActorRef:   tok,
		Action:     model.ActionPublicDocumentDownloaded,
		IPAddress:  ip,
	})
	return data, name, nil
}

// Delete removes a pending placeholder and reverts the document to pending
// when it was the last one. Consumed signatures are immutable evidence.
func (s *SignatureServiceImpl) Delete(ctx context.Context, ownerID, sigID uuid.UUID, ip string) error {
	if ownerID == uuid.Nil || sigID == uuid.Nil {
		return fmt.Errorf("empty owner/signature: %w", errs.ErrValidation)
	}
	sig, err := s.sigs.Get(ctx, sigID)
	if err != nil {
		return err
	}
	// Ownership check through the document; a foreign signature is absence.
	if _, err := s.docs.GetOwned(ctx, ownerID, sig.DocumentID); err != nil {
		return err
	}
	if err := sig.CanDelete(); err != nil {
		return err
	}
	if err := s.sigs.DeletePending(ctx, sigID); err != nil {
		return err
	}

	s.audit.Record(ctx, Event{
		DocumentID: sig.DocumentID,
		ActorKind:  model.ActorInternal,
		ActorRef:   ownerID.String(),
		Action:     model.ActionPlaceholderDeleted,
		IPAddress:  ip,
	})
	return nil
}
