package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/inkseal/inkseal/internal/crypto"
	"github.com/inkseal/inkseal/internal/errs"
	"github.com/inkseal/inkseal/internal/limiter"
	"github.com/inkseal/inkseal/internal/model"
	"github.com/inkseal/inkseal/internal/repository"
	"github.com/inkseal/inkseal/internal/stamp"
	"github.com/inkseal/inkseal/internal/storage"
)

// FinalizeService runs the finalize-and-stamp protocol. The owner and
// public paths share one pipeline and differ only in authorization.
type FinalizeService interface {
	// FinalizeInternal consumes the owner's own placeholder.
	FinalizeInternal(ctx context.Context, ownerID, docID uuid.UUID, ip string) (*model.Document, error)
	// FinalizePublic consumes a token-authorized placeholder; the supplied
	// email must match the signature's stored hash.
	FinalizePublic(ctx context.Context, tok, email, ip string) (*model.Document, error)
}

type FinalizeServiceImpl struct {
	docs    repository.DocumentRepository
	sigs    repository.SignatureRepository
	blobs   storage.BlobStore
	stamper stamp.Stamper
	audit   Recorder
	lim     limiter.Limiter
	now     func() time.Time
}

// NewFinalizeService constructs FinalizeService with required dependencies.
func NewFinalizeService(
	docs repository.DocumentRepository,
	sigs repository.SignatureRepository,
	blobs storage.BlobStore,
	stamper stamp.Stamper,
	audit Recorder,
	lim limiter.Limiter,
) *FinalizeServiceImpl {
	return &FinalizeServiceImpl{
		docs: docs, sigs: sigs, blobs: blobs,
		stamper: stamper, audit: audit, lim: lim, now: time.Now,
	}
}

// FinalizeInternal authorizes by ownership, then runs the shared pipeline.
func (s *FinalizeServiceImpl) FinalizeInternal(ctx context.Context, ownerID, docID uuid.UUID, ip string) (*model.Document, error) {
	if ownerID == uuid.Nil || docID == uuid.Nil {
		return nil, fmt.Errorf("empty owner/document: %w", errs.ErrValidation)
	}
	doc, err := s.docs.GetOwned(ctx, ownerID, docID)
	if err != nil {
		return nil, err
	}
	sig, err := s.sigs.GetInternal(ctx, docID, ownerID.String())
	if err != nil {
		return nil, err
	}
	doc, err = s.finalize(ctx, doc, sig)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, Event{
		DocumentID: doc.ID,
		ActorKind:  model.ActorInternal,
		ActorRef:   ownerID.String(),
		Action:     model.ActionDocumentSignedInternal,
		IPAddress:  ip,
	})
	return doc, nil
}

// FinalizePublic authorizes by token possession plus email binding, then
// runs the shared pipeline. The audit actor is the token, never the email.
func (s *FinalizeServiceImpl) FinalizePublic(ctx context.Context, tok, email, ip string) (*model.Document, error) {
	if tok == "" {
		return nil, fmt.Errorf("empty token: %w", errs.ErrValidation)
	}
	if !crypto.ValidEmail(email) {
		return nil, fmt.Errorf("invalid email format: %w", errs.ErrValidation)
	}

	ipHash := limiter.HashIP(ip)
	allowed, retryAfter, err := s.lim.Allow(ctx, tok, ipHash)
	if err != nil {
		return nil, fmt.Errorf("limiter: %w: %w", errs.ErrDependency, err)
	}
	if !allowed {
		return nil, fmt.Errorf("retry after %s: %w", retryAfter, errs.ErrRateLimited)
	}

	sig, err := s.sigs.GetByToken(ctx, tok)
	if err != nil {
		return nil, err
	}
	if !crypto.VerifyEmail(email, sig.EmailHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, tok, ipHash); ferr == nil && blocked {
			return nil, fmt.Errorf("too many attempts: %w", errs.ErrRateLimited)
		}
		return nil, fmt.Errorf("email does not match intended signer: %w", errs.ErrForbidden)
	}
	_ = s.lim.Success(ctx, tok, ipHash)

	doc, err := s.docs.Get(ctx, sig.DocumentID)
	if err != nil {
		return nil, err
	}
	doc, err = s.finalize(ctx, doc, sig)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, Event{
		DocumentID: doc.ID,
		ActorKind:  model.ActorPublic,
		ActorRef:   tok,
		Action:     model.ActionDocumentSignedPublic,
		IPAddress:  ip,
	})
	return doc, nil
}

// finalize is the shared pipeline: guards, integrity check, stamp, artifact
// promotion, atomic commit. Promotion precedes the commit, so a timeout
// between the two leaves a recoverable state: re-running finalize observes
// the existing artifact as a conflict, never a silently half-signed pair.
func (s *FinalizeServiceImpl) finalize(ctx context.Context, doc *model.Document, sig *model.Signature) (*model.Document, error) {
	if err := doc.Status.CanFinalize(); err != nil {
		return nil, err
	}
	if doc.SignedPath != "" {
		return nil, fmt.Errorf("document already signed: %w", errs.ErrConflict)
	}
	if err := sig.CanConsume(s.now()); err != nil {
		return nil, err
	}

	original, err := s.blobs.Get(ctx, doc.OriginalPath)
	if err != nil {
		return nil, fmt.Errorf("fetch original: %w: %w", errs.ErrDependency, err)
	}
	if !crypto.VerifyFingerprint(original, doc.FileHash) {
		return nil, fmt.Errorf("document has been modified since upload: %w", errs.ErrIntegrity)
	}

	stamped, err := s.stamper.Stamp(ctx, original, stamp.Mark{
		Page:     sig.PageNumber,
		XPercent: sig.XPercent,
		YPercent: sig.YPercent,
	})
	if err != nil {
		return nil, fmt.Errorf("stamp document: %w: %w", errs.ErrDependency, err)
	}

	signedPath := storage.SignedPath(doc.ID.String())
	if err := s.blobs.Put(ctx, signedPath, stamped, "application/pdf", false); err != nil {
		if errors.Is(err, storage.ErrExists) {
			// Backstop for racing finalizers: promotion is write-once even
			// when both passed the status guard.
			return nil, fmt.Errorf("signed artifact already exists: %w", errs.ErrConflict)
		}
		return nil, fmt.Errorf("promote signed artifact: %w: %w", errs.ErrDependency, err)
	}

	if err := s.docs.CommitSigned(ctx, doc.ID, sig.ID, signedPath); err != nil {
		return nil, err
	}

	committed := *doc
	committed.Status = model.DocumentSigned
	committed.SignedPath = signedPath
	return &committed, nil
}
