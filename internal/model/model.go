// Package model defines domain entities used by services and repositories.
package model

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/inkseal/inkseal/internal/errs"
)

// DocumentStatus is the closed set of document lifecycle states.
type DocumentStatus string

const (
	DocumentPending     DocumentStatus = "pending"
	DocumentReadyToSign DocumentStatus = "ready_to_sign"
	DocumentSigned      DocumentStatus = "signed" // terminal
)

// Valid reports whether s is a known document status.
func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentPending, DocumentReadyToSign, DocumentSigned:
		return true
	}
	return false
}

// CanAcceptPlaceholder reports whether a public signature placeholder may
// be attached in the current state. Signed is terminal; pending and
// ready_to_sign both accept, so several public signers can be invited.
func (s DocumentStatus) CanAcceptPlaceholder() error {
	if s == DocumentSigned {
		return fmt.Errorf("document already signed: %w", errs.ErrConflict)
	}
	if !s.Valid() {
		return fmt.Errorf("unknown document status %q: %w", s, errs.ErrConflict)
	}
	return nil
}

// CanAcceptInternalPlaceholder reports whether the owner's own placeholder
// may be attached. Stricter than the public guard: internal placement
// requires a fresh pending document.
func (s DocumentStatus) CanAcceptInternalPlaceholder() error {
	if s != DocumentPending {
		return fmt.Errorf("document status %q is not pending: %w", s, errs.ErrConflict)
	}
	return nil
}

// CanFinalize reports whether the finalize protocol may run.
func (s DocumentStatus) CanFinalize() error {
	if s != DocumentReadyToSign {
		return fmt.Errorf("document status %q is not ready_to_sign: %w", s, errs.ErrConflict)
	}
	return nil
}

// SignatureStatus is the closed set of signature lifecycle states.
type SignatureStatus string

const (
	SignaturePending SignatureStatus = "pending"
	SignatureSigned  SignatureStatus = "signed" // terminal, set only by finalize
)

// SignerKind discriminates account holders from token-authorized signers.
type SignerKind string

const (
	SignerInternal SignerKind = "internal"
	SignerPublic   SignerKind = "public"
)

// ActorKind identifies who caused an audit event.
type ActorKind string

const (
	ActorInternal ActorKind = "internal"
	ActorPublic   ActorKind = "public"
	ActorSystem   ActorKind = "system"
)

// AuditAction is the enumerated tag of a state-changing or attributable action.
type AuditAction string

const (
	ActionDocumentUploaded         AuditAction = "DOCUMENT_UPLOADED"
	ActionDocumentDeleted          AuditAction = "DOCUMENT_DELETED"
	ActionDocumentSignedInternal   AuditAction = "DOCUMENT_SIGNED_INTERNAL"
	ActionDocumentSignedPublic     AuditAction = "DOCUMENT_SIGNED_PUBLIC"
	ActionPlaceholderCreated       AuditAction = "SIGNATURE_PLACEHOLDER_CREATED"
	ActionPlaceholderDeleted       AuditAction = "SIGNATURE_PLACEHOLDER_DELETED"
	ActionPublicLinkCreated        AuditAction = "PUBLIC_SIGNATURE_LINK_CREATED"
	ActionOriginalDownloaded       AuditAction = "ORIGINAL_DOCUMENT_DOWNLOADED"
	ActionSignedDownloaded         AuditAction = "SIGNED_DOCUMENT_DOWNLOADED"
	ActionPublicDocumentDownloaded AuditAction = "PUBLIC_DOCUMENT_DOWNLOADED"
)

// Document is an uploaded PDF owned by a single account.
// SignedPath is non-empty iff Status == DocumentSigned.
type Document struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	Title        string
	OriginalPath string // object-storage locator of the uploaded bytes
	SignedPath   string // object-storage locator of the stamped artifact ("" until signed)
	FileHash     []byte // SHA-256 of the original bytes at upload time
	Status       DocumentStatus
	CreatedAt    time.Time
}

// Signature is a placeholder (pending) or consumed (signed) signing slot.
// For public signers, SignerRef holds the opaque bearer token and the
// email binding fields are set; internal signers carry the owner ID.
type Signature struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	SignerKind SignerKind
	SignerRef  string // owner UUID string (internal) or opaque token (public)
	PageNumber int
	XPercent   float64
	YPercent   float64
	Status     SignatureStatus
	ExpiresAt  time.Time // zero for internal signers
	EmailHash  []byte    // salted one-way hash of the signer email (public only)
	EmailHint  string    // masked display form of the signer email (public only)
	CreatedAt  time.Time
}

// Expired reports whether a public signature's validity window has passed.
func (s *Signature) Expired(now time.Time) bool {
	return s.SignerKind == SignerPublic && now.After(s.ExpiresAt)
}

// CanDelete rejects deletion of consumed signatures; they are immutable evidence.
func (s *Signature) CanDelete() error {
	if s.Status == SignatureSigned {
		return fmt.Errorf("signature already consumed: %w", errs.ErrConflict)
	}
	return nil
}

// CanConsume reports whether the signature may still be finalized.
func (s *Signature) CanConsume(now time.Time) error {
	if s.Status != SignaturePending {
		return fmt.Errorf("signature already consumed: %w", errs.ErrConflict)
	}
	if s.Expired(now) {
		return fmt.Errorf("signature link: %w", errs.ErrExpired)
	}
	return nil
}

// AuditLogEntry is an append-only historical fact about one document.
type AuditLogEntry struct {
	ID         int64
	DocumentID uuid.UUID
	ActorKind  ActorKind
	ActorRef   string
	Action     AuditAction
	IPAddress  string
	CreatedAt  time.Time
}
