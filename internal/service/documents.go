package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/inkseal/inkseal/internal/crypto"
	"github.com/inkseal/inkseal/internal/errs"
	"github.com/inkseal/inkseal/internal/model"
	"github.com/inkseal/inkseal/internal/pdfinspect"
	"github.com/inkseal/inkseal/internal/repository"
	"github.com/inkseal/inkseal/internal/storage"
)

// MaxUploadBytes is the default hard cap on uploaded PDFs.
const MaxUploadBytes = 20 << 20 // 20 MiB

// DocumentService owns document records and their artifacts.
type DocumentService interface {
	// Upload validates and stores a new PDF in status pending.
	Upload(ctx context.Context, ownerID uuid.UUID, title, contentType string, data []byte, ip string) (*model.Document, error)
	// List returns the owner's documents, newest first.
	List(ctx context.Context, ownerID uuid.UUID) ([]model.Document, error)
	// Get returns a single owned document.
	Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Document, error)
	// Delete removes both artifacts and the record.
	Delete(ctx context.Context, ownerID, id uuid.UUID, ip string) error
	// DownloadOriginal returns the original bytes and the document title.
	DownloadOriginal(ctx context.Context, ownerID, id uuid.UUID, preview bool, ip string) ([]byte, string, error)
	// DownloadSigned returns the stamped artifact of a signed document.
	DownloadSigned(ctx context.Context, ownerID, id uuid.UUID, preview bool, ip string) ([]byte, string, error)
}

type DocumentServiceImpl struct {
	docs     repository.DocumentRepository
	blobs    storage.BlobStore
	audit    Recorder
	log      *zap.Logger
	maxBytes int
	inspect  func([]byte) (pdfinspect.Info, error)
}

// NewDocumentService constructs DocumentService with required dependencies.
func NewDocumentService(docs repository.DocumentRepository, blobs storage.BlobStore, audit Recorder, log *zap.Logger, maxBytes int) *DocumentServiceImpl {
	if maxBytes <= 0 {
		maxBytes = MaxUploadBytes
	}
	return &DocumentServiceImpl{
		docs: docs, blobs: blobs, audit: audit, log: log,
		maxBytes: maxBytes, inspect: pdfinspect.Inspect,
	}
}

// Upload validates content, stores the bytes, and creates the record in
// status pending. Duplicate content per owner is a conflict, enforced by
// the repository's unique constraint rather than a racy pre-check.
func (s *DocumentServiceImpl) Upload(ctx context.Context, ownerID uuid.UUID, title, contentType string, data []byte, ip string) (*model.Document, error) {
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("empty owner: %w", errs.ErrValidation)
	}
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", errs.ErrValidation)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("file is required: %w", errs.ErrValidation)
	}
	if contentType != "application/pdf" {
		return nil, fmt.Errorf("invalid content type %q: %w", contentType, errs.ErrValidation)
	}
	if len(data) > s.maxBytes {
		return nil, fmt.Errorf("file size exceeds %d bytes: %w", s.maxBytes, errs.ErrValidation)
	}
	if _, err := s.inspect(data); err != nil {
		return nil, err
	}

	hash, err := crypto.Fingerprint(data)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	doc := &model.Document{
		ID:           id,
		OwnerID:      ownerID,
		Title:        title,
		OriginalPath: storage.OriginalPath(id.String()),
		FileHash:     hash,
		Status:       model.DocumentPending,
	}

	if err := s.blobs.Put(ctx, doc.OriginalPath, data, "application/pdf", false); err != nil {
		return nil, fmt.Errorf("store original: %w: %w", errs.ErrDependency, err)
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		// Compensate: the row was rejected, so the blob must not linger.
		if derr := s.blobs.Delete(context.WithoutCancel(ctx), doc.OriginalPath); derr != nil {
			s.log.Warn("orphaned original after failed create",
				zap.String("path", doc.OriginalPath), zap.Error(derr))
		}
		if errors.Is(err, errs.ErrAlreadyExists) {
			return nil, fmt.Errorf("same document already exists: %w", errs.ErrConflict)
		}
		return nil, err
	}

	s.audit.Record(ctx, Event{
		DocumentID: doc.ID,
		ActorKind:  model.ActorInternal,
		ActorRef:   ownerID.String(),
		Action:     model.ActionDocumentUploaded,
		IPAddress:  ip,
	})
	return doc, nil
}

// List returns the owner's documents, newest first.
func (s *DocumentServiceImpl) List(ctx context.Context, ownerID uuid.UUID) ([]model.Document, error) {
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("empty owner: %w", errs.ErrValidation)
	}
	return s.docs.ListOwned(ctx, ownerID)
}

// Get returns a single owned document; cross-owner access is absence.
func (s *DocumentServiceImpl) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Document, error) {
	if ownerID == uuid.Nil || id == uuid.Nil {
		return nil, fmt.Errorf("empty owner/id: %w", errs.ErrValidation)
	}
	return s.docs.GetOwned(ctx, ownerID, id)
}

// Delete removes the storage objects first and the record last. A missing
// object counts as already deleted, so a half-failed delete can be retried
// end to end without partial success.
func (s *DocumentServiceImpl) Delete(ctx context.Context, ownerID, id uuid.UUID, ip string) error {
	doc, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if err := s.deleteBlob(ctx, doc.OriginalPath); err != nil {
		return err
	}
	if doc.SignedPath != "" {
		if err := s.deleteBlob(ctx, doc.SignedPath); err != nil {
			return err
		}
	}
	if err := s.docs.Delete(ctx, ownerID, id); err != nil {
		return err
	}

	s.audit.Record(ctx, Event{
		DocumentID: doc.ID,
		ActorKind:  model.ActorInternal,
		ActorRef:   ownerID.String(),
		Action:     model.ActionDocumentDeleted,
		IPAddress:  ip,
	})
	return nil
}

func (s *DocumentServiceImpl) deleteBlob(ctx context.Context, path string) error {
	err := s.blobs.Delete(ctx, path)
	if err != nil && !errors.Is(err, storage.ErrNotExist) {
		return fmt.Errorf("delete artifact: %w: %w", errs.ErrDependency, err)
	}
	return nil
}

// DownloadOriginal returns the original bytes. Preview fetches skip the trail.
func (s *DocumentServiceImpl) DownloadOriginal(ctx context.Context, ownerID, id uuid.UUID, preview bool, ip string) ([]byte, string, error) {
	doc, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, "", err
	}
	data, err := s.blobs.Get(ctx, doc.OriginalPath)
	if err != nil {
		return nil, "", fmt.Errorf("fetch original: %w: %w", errs.ErrDependency, err)
	}
	if !preview {
		s.audit.Record(ctx, Event{
			DocumentID: doc.ID,
			ActorKind:  model.ActorInternal,
			ActorRef:   ownerID.String(),
			Action:     model.ActionOriginalDownloaded,
			IPAddress:  ip,
		})
	}
	return data, doc.Title, nil
}

// DownloadSigned returns the stamped artifact. An unsigned document reports
// absence, matching the invariant that the artifact exists iff signed.
func (s *DocumentServiceImpl) DownloadSigned(ctx context.Context, ownerID, id uuid.UUID, preview bool, ip string) ([]byte, string, error) {
	doc, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, "", err
	}
	if doc.Status != model.DocumentSigned || doc.SignedPath == "" {
		return nil, "", fmt.Errorf("signed document: %w", errs.ErrNotFound)
	}
	data, err := s.blobs.Get(ctx, doc.SignedPath)
	if err != nil {
		return nil, "", fmt.Errorf("fetch signed artifact: %w: %w", errs.ErrDependency, err)
	}
	if !preview {
		s.audit.Record(ctx, Event{
			DocumentID: doc.ID,
			ActorKind:  model.ActorInternal,
			ActorRef:   ownerID.String(),
			Action:     model.ActionSignedDownloaded,
			IPAddress:  ip,
		})
	}
	return data, doc.Title + "_signed", nil
}
