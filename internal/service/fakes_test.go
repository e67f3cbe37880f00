package service

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/inkseal/inkseal/internal/model"
	"github.com/inkseal/inkseal/internal/repository"
)

type fakeDocRepo struct {
	createIn  *model.Document
	createErr error

	getOwnedInOwner uuid.UUID
	getOwnedInID    uuid.UUID
	getOwnedOut     *model.Document
	getOwnedErr     error

	getInID uuid.UUID
	getOut  *model.Document
	getErr  error

	listOut []model.Document
	listErr error

	deleteCalled bool
	deleteErr    error

	commitInDoc  uuid.UUID
	commitInSig  uuid.UUID
	commitInPath string
	commitErr    error
}

var _ repository.DocumentRepository = (*fakeDocRepo)(nil)

func (f *fakeDocRepo) Create(_ context.Context, d *model.Document) error {
	f.createIn = d
	return f.createErr
}
func (f *fakeDocRepo) GetOwned(_ context.Context, ownerID, id uuid.UUID) (*model.Document, error) {
	f.getOwnedInOwner, f.getOwnedInID = ownerID, id
	return f.getOwnedOut, f.getOwnedErr
}
func (f *fakeDocRepo) Get(_ context.Context, id uuid.UUID) (*model.Document, error) {
	f.getInID = id
	return f.getOut, f.getErr
}
func (f *fakeDocRepo) ListOwned(_ context.Context, _ uuid.UUID) ([]model.Document, error) {
	return append([]model.Document(nil), f.listOut...), f.listErr
}
func (f *fakeDocRepo) Delete(_ context.Context, _, _ uuid.UUID) error {
	f.deleteCalled = true
	return f.deleteErr
}
func (f *fakeDocRepo) MarkReadyToSign(_ context.Context, _ uuid.UUID) error { return nil }
func (f *fakeDocRepo) RevertToPending(_ context.Context, _ uuid.UUID) error { return nil }
func (f *fakeDocRepo) CommitSigned(_ context.Context, docID, sigID uuid.UUID, signedPath string) error {
	f.commitInDoc, f.commitInSig, f.commitInPath = docID, sigID, signedPath
	return f.commitErr
}

type fakeSigRepo struct {
	createIn  *model.Signature
	createErr error

	getOut *model.Signature
	getErr error

	byTokenIn  string
	byTokenOut *model.Signature
	byTokenErr error

	internalOut *model.Signature
	internalErr error

	listOut []model.Signature

	delPendingIn  uuid.UUID
	delPendingErr error
}

var _ repository.SignatureRepository = (*fakeSigRepo)(nil)

func (f *fakeSigRepo) Create(_ context.Context, s *model.Signature) error {
	f.createIn = s
	return f.createErr
}
func (f *fakeSigRepo) Get(_ context.Context, _ uuid.UUID) (*model.Signature, error) {
	return f.getOut, f.getErr
}
func (f *fakeSigRepo) GetByToken(_ context.Context, tok string) (*model.Signature, error) {
	f.byTokenIn = tok
	return f.byTokenOut, f.byTokenErr
}
func (f *fakeSigRepo) GetInternal(_ context.Context, _ uuid.UUID, _ string) (*model.Signature, error) {
	return f.internalOut, f.internalErr
}
func (f *fakeSigRepo) ListByDocument(_ context.Context, _ uuid.UUID) ([]model.Signature, error) {
	return append([]model.Signature(nil), f.listOut...), nil
}
func (f *fakeSigRepo) DeletePending(_ context.Context, id uuid.UUID) error {
	f.delPendingIn = id
	return f.delPendingErr
}

// fakeRecorder captures events in order instead of writing them anywhere.
type fakeRecorder struct {
	events []Event
}

var _ Recorder = (*fakeRecorder)(nil)

func (f *fakeRecorder) Record(_ context.Context, ev Event) {
	f.events = append(f.events, ev)
}
func (f *fakeRecorder) ListFor(_ context.Context, _ uuid.UUID) ([]model.AuditLogEntry, error) {
	return nil, nil
}

// lastAction returns the most recent recorded action, or "" when empty.
func (f *fakeRecorder) lastAction() model.AuditAction {
	if len(f.events) == 0 {
		return ""
	}
	return f.events[len(f.events)-1].Action
}

// fakeLimiter is a Limiter with scripted responses.
type fakeLimiter struct {
	allow      bool
	retryAfter time.Duration

	failBlocked  bool
	failures     int
	successCalls int
}

func (f *fakeLimiter) Allow(_ context.Context, _ string, _ []byte) (bool, time.Duration, error) {
	return f.allow, f.retryAfter, nil
}
func (f *fakeLimiter) Success(_ context.Context, _ string, _ []byte) error {
	f.successCalls++
	return nil
}
func (f *fakeLimiter) Failure(_ context.Context, _ string, _ []byte) (bool, time.Duration, error) {
	f.failures++
	return f.failBlocked, f.retryAfter, nil
}
