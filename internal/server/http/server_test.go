package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inkseal/inkseal/internal/errs"
	"github.com/inkseal/inkseal/internal/model"
	"github.com/inkseal/inkseal/internal/service"
)

type stubDocs struct {
	uploadOut *model.Document
	uploadErr error

	listOut []model.Document
	listErr error

	getOut *model.Document
	getErr error

	deleteErr error

	downloadData []byte
	downloadName string
	downloadErr  error
}

var _ service.DocumentService = (*stubDocs)(nil)

func (s *stubDocs) Upload(_ context.Context, _ uuid.UUID, _, _ string, _ []byte, _ string) (*model.Document, error) {
	return s.uploadOut, s.uploadErr
}
func (s *stubDocs) List(_ context.Context, _ uuid.UUID) ([]model.Document, error) {
	return s.listOut, s.listErr
}
func (s *stubDocs) Get(_ context.Context, _, _ uuid.UUID) (*model.Document, error) {
	return s.getOut, s.getErr
}
func (s *stubDocs) Delete(_ context.Context, _, _ uuid.UUID, _ string) error { return s.deleteErr }
func (s *stubDocs) DownloadOriginal(_ context.Context, _, _ uuid.UUID, _ bool, _ string) ([]byte, string, error) {
	return s.downloadData, s.downloadName, s.downloadErr
}
func (s *stubDocs) DownloadSigned(_ context.Context, _, _ uuid.UUID, _ bool, _ string) ([]byte, string, error) {
	return s.downloadData, s.downloadName, s.downloadErr
}

type stubSigs struct {
	placeOut *model.Signature
	placeErr error
	link     string

	listOut []model.Signature
	listErr error

	fetchOut *service.PublicSignatureView
	fetchErr error

	downloadData []byte
	downloadName string
	downloadErr  error

	deleteErr error
}

var _ service.SignatureService = (*stubSigs)(nil)

func (s *stubSigs) PlaceInternal(_ context.Context, _, _ uuid.UUID, _ int, _, _ float64, _ string) (*model.Signature, error) {
	return s.placeOut, s.placeErr
}
func (s *stubSigs) PlacePublic(_ context.Context, _, _ uuid.UUID, _ int, _, _ float64, _, _ string) (*model.Signature, string, error) {
	return s.placeOut, s.link, s.placeErr
}
func (s *stubSigs) List(_ context.Context, _, _ uuid.UUID) ([]model.Signature, error) {
	return s.listOut, s.listErr
}
func (s *stubSigs) FetchPublic(_ context.Context, _, _, _ string) (*service.PublicSignatureView, error) {
	return s.fetchOut, s.fetchErr
}
func (s *stubSigs) DownloadPublic(_ context.Context, _, _ string, _ service.PublicDownloadKind, _ string) ([]byte, string, error) {
	return s.downloadData, s.downloadName, s.downloadErr
}
func (s *stubSigs) Delete(_ context.Context, _, _ uuid.UUID, _ string) error { return s.deleteErr }

type stubFinalize struct {
	out *model.Document
	err error
}

var _ service.FinalizeService = (*stubFinalize)(nil)

func (s *stubFinalize) FinalizeInternal(_ context.Context, _, _ uuid.UUID, _ string) (*model.Document, error) {
	return s.out, s.err
}
func (s *stubFinalize) FinalizePublic(_ context.Context, _, _, _ string) (*model.Document, error) {
	return s.out, s.err
}

type stubRecorder struct {
	listOut []model.AuditLogEntry
}

func (s *stubRecorder) Record(context.Context, service.Event) {}
func (s *stubRecorder) ListFor(context.Context, uuid.UUID) ([]model.AuditLogEntry, error) {
	return s.listOut, nil
}

var testOwner = uuid.Must(uuid.NewV4())

func okIdentity(*http.Request) (uuid.UUID, error) { return testOwner, nil }

func newTestServer(docs *stubDocs, sigs *stubSigs, fin *stubFinalize, rec *stubRecorder, identity IdentityFunc) http.Handler {
	if docs == nil {
		docs = &stubDocs{}
	}
	if sigs == nil {
		sigs = &stubSigs{}
	}
	if fin == nil {
		fin = &stubFinalize{}
	}
	if rec == nil {
		rec = &stubRecorder{}
	}
	if identity == nil {
		identity = okIdentity
	}
	return New(docs, sigs, fin, rec, identity, zap.NewNop(), 1<<20).Router()
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	t.Parallel()
	h := newTestServer(nil, nil, nil, nil, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestUnauthenticated(t *testing.T) {
	t.Parallel()
	h := newTestServer(nil, nil, nil, nil, func(*http.Request) (uuid.UUID, error) {
		return uuid.Nil, errors.New("no credentials")
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/documents/", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "UNAUTHORIZED", decodeBody(t, rr)["code"])
}

func TestUpload(t *testing.T) {
	t.Parallel()
	doc := &model.Document{ID: uuid.Must(uuid.NewV4()), Title: "contract", Status: model.DocumentPending, CreatedAt: time.Now()}
	h := newTestServer(&stubDocs{uploadOut: doc}, nil, nil, nil, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "contract.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-data"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("title", "contract"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	out := decodeBody(t, rr)["document"].(map[string]any)
	require.Equal(t, doc.ID.String(), out["id"])
	require.Equal(t, "pending", out["status"])
	require.Equal(t, false, out["signed"])
}

func TestGet_InvalidID(t *testing.T) {
	t.Parallel()
	h := newTestServer(nil, nil, nil, nil, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/documents/not-a-uuid", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "VALIDATION", decodeBody(t, rr)["code"])
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{errs.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{fmt.Errorf("same document already exists: %w", errs.ErrConflict), http.StatusConflict, "CONFLICT"},
		{fmt.Errorf("signature link: %w", errs.ErrExpired), http.StatusConflict, "EXPIRED"},
		{fmt.Errorf("modified: %w", errs.ErrIntegrity), http.StatusConflict, "INTEGRITY"},
		{fmt.Errorf("email mismatch: %w", errs.ErrForbidden), http.StatusForbidden, "FORBIDDEN"},
		{fmt.Errorf("retry later: %w", errs.ErrRateLimited), http.StatusTooManyRequests, "RATE_LIMITED"},
		{errors.New("pool exhausted"), http.StatusInternalServerError, "INTERNAL"},
	}
	id := uuid.Must(uuid.NewV4())
	for _, tc := range cases {
		h := newTestServer(&stubDocs{getErr: tc.err}, nil, nil, nil, nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+id.String(), nil))
		require.Equal(t, tc.status, rr.Code, "error %v", tc.err)
		body := decodeBody(t, rr)
		require.Equal(t, tc.code, body["code"], "error %v", tc.err)
		require.True(t, strings.HasPrefix(body["request_id"].(string), "req_"))
	}
}

func TestInternalErrorHidesDetail(t *testing.T) {
	t.Parallel()
	h := newTestServer(&stubDocs{getErr: errors.New("dial tcp 10.0.0.5:5432: connection refused")}, nil, nil, nil, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+uuid.Must(uuid.NewV4()).String(), nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "10.0.0.5")
}

func TestPlacePublic(t *testing.T) {
	t.Parallel()
	sig := &model.Signature{
		ID:         uuid.Must(uuid.NewV4()),
		DocumentID: uuid.Must(uuid.NewV4()),
		PageNumber: 1,
		Status:     model.SignaturePending,
		ExpiresAt:  time.Now().Add(48 * time.Hour),
	}
	h := newTestServer(nil, &stubSigs{placeOut: sig, link: "https://x/sign/tok"}, nil, nil, nil)

	body := fmt.Sprintf(`{"documentId":%q,"pageNumber":1,"xPercent":50,"yPercent":50,"signerEmail":"s@example.com"}`, sig.DocumentID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/signatures/public", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	out := decodeBody(t, rr)
	require.Equal(t, "https://x/sign/tok", out["link"])
	require.Equal(t, sig.ID.String(), out["signature"].(map[string]any)["id"])
}

func TestListSignatures(t *testing.T) {
	t.Parallel()
	docID := uuid.Must(uuid.NewV4())
	sigs := &stubSigs{listOut: []model.Signature{
		{ID: uuid.Must(uuid.NewV4()), DocumentID: docID, SignerKind: model.SignerInternal, PageNumber: 1, Status: model.SignaturePending},
		{ID: uuid.Must(uuid.NewV4()), DocumentID: docID, SignerKind: model.SignerPublic, PageNumber: 2, Status: model.SignatureSigned},
	}}
	h := newTestServer(nil, sigs, nil, nil, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+docID.String()+"/signatures", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	out := decodeBody(t, rr)["signatures"].([]any)
	require.Len(t, out, 2)
	require.Equal(t, "internal", out[0].(map[string]any)["signerKind"])
	require.Equal(t, "signed", out[1].(map[string]any)["status"])
}

func TestListSignatures_ForeignDocumentIsAbsence(t *testing.T) {
	t.Parallel()
	h := newTestServer(nil, &stubSigs{listErr: errs.ErrNotFound}, nil, nil, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+uuid.Must(uuid.NewV4()).String()+"/signatures", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPlaceInternal_MalformedBody(t *testing.T) {
	t.Parallel()
	h := newTestServer(nil, nil, nil, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/signatures/", strings.NewReader(`{"documentId": 5`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFetchPublic(t *testing.T) {
	t.Parallel()
	view := &service.PublicSignatureView{
		DocumentTitle: "contract",
		PageNumber:    2,
		Status:        model.SignaturePending,
		EmailHint:     "s****r@example.com",
		ExpiresAt:     time.Now().Add(time.Hour),
		EmailVerified: true,
	}
	h := newTestServer(nil, &stubSigs{fetchOut: view}, nil, nil, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/public/signatures/tok-abc?email=s%40example.com", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	out := decodeBody(t, rr)
	require.Equal(t, "contract", out["documentTitle"])
	require.Equal(t, "s****r@example.com", out["emailHint"])
	require.Equal(t, true, out["emailVerified"])
}

func TestDownloadOriginal_ServesPDF(t *testing.T) {
	t.Parallel()
	h := newTestServer(&stubDocs{downloadData: []byte("%PDF-bytes"), downloadName: "contract"}, nil, nil, nil, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+uuid.Must(uuid.NewV4()).String()+"/original", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Header().Get("Content-Disposition"), `"contract.pdf"`)
	require.Equal(t, "%PDF-bytes", rr.Body.String())
}

func TestFinalizePublic(t *testing.T) {
	t.Parallel()
	doc := &model.Document{ID: uuid.Must(uuid.NewV4()), Title: "contract", Status: model.DocumentSigned, SignedPath: "signed/x.pdf"}
	h := newTestServer(nil, nil, &stubFinalize{out: doc}, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/signatures/tok-abc/finalize", strings.NewReader(`{"email":"s@example.com"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	out := decodeBody(t, rr)["document"].(map[string]any)
	require.Equal(t, true, out["signed"])
}

func TestAuditLog(t *testing.T) {
	t.Parallel()
	docID := uuid.Must(uuid.NewV4())
	rec := &stubRecorder{listOut: []model.AuditLogEntry{
		{DocumentID: docID, ActorKind: model.ActorPublic, ActorRef: "tok", Action: model.ActionDocumentSignedPublic, CreatedAt: time.Now()},
		{DocumentID: docID, ActorKind: model.ActorInternal, ActorRef: testOwner.String(), Action: model.ActionDocumentUploaded, CreatedAt: time.Now()},
	}}
	docs := &stubDocs{getOut: &model.Document{ID: docID, OwnerID: testOwner, Status: model.DocumentSigned}}
	h := newTestServer(docs, nil, nil, rec, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+docID.String()+"/audit", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	logs := decodeBody(t, rr)["logs"].([]any)
	require.Len(t, logs, 2)
	require.Equal(t, "DOCUMENT_SIGNED_PUBLIC", logs[0].(map[string]any)["action"])
}

func TestAuditLog_ForeignDocumentIsAbsence(t *testing.T) {
	t.Parallel()
	h := newTestServer(&stubDocs{getErr: errs.ErrNotFound}, nil, nil, nil, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+uuid.Must(uuid.NewV4()).String()+"/audit", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestClientIP(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:5555"
	require.Equal(t, "10.1.2.3", clientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.1.2.3")
	require.Equal(t, "203.0.113.7", clientIP(r))
}

func TestFirstLine(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("title is required: %w", errs.ErrValidation)
	require.Equal(t, "title is required", firstLine(err))
	require.Equal(t, "flat", firstLine(errors.New("flat")))
}
