package httpserver

import (
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/inkseal/inkseal/internal/errs"
	"github.com/inkseal/inkseal/internal/model"
	"github.com/inkseal/inkseal/internal/service"
)

// IdentityFunc resolves the authenticated owner of a request. Credential
// verification is external to the engine; the adapter only consumes the
// result. Unauthenticated requests must return an error.
type IdentityFunc func(r *http.Request) (uuid.UUID, error)

// Server wires the lifecycle services into a chi router.
type Server struct {
	docs     service.DocumentService
	sigs     service.SignatureService
	finalize service.FinalizeService
	audit    service.Recorder
	identity IdentityFunc
	log      *zap.Logger
	maxBytes int64
}

// New constructs the transport adapter.
func New(
	docs service.DocumentService,
	sigs service.SignatureService,
	finalize service.FinalizeService,
	audit service.Recorder,
	identity IdentityFunc,
	log *zap.Logger,
	maxBytes int64,
) *Server {
	return &Server{
		docs: docs, sigs: sigs, finalize: finalize, audit: audit,
		identity: identity, log: log, maxBytes: maxBytes,
	}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverer, s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/documents", func(d chi.Router) {
			d.Post("/", s.handleUpload)
			d.Get("/", s.handleList)
			d.Get("/{id}", s.handleGet)
			d.Delete("/{id}", s.handleDelete)
			d.Get("/{id}/signatures", s.handleListSignatures)
			d.Get("/{id}/original", s.handleDownloadOriginal)
			d.Get("/{id}/signed", s.handleDownloadSigned)
			d.Get("/{id}/audit", s.handleAuditLog)
			d.Post("/{id}/finalize", s.handleFinalizeInternal)
		})
		api.Route("/signatures", func(sg chi.Router) {
			sg.Post("/", s.handlePlaceInternal)
			sg.Post("/public", s.handlePlacePublic)
			sg.Delete("/{id}", s.handleDeleteSignature)
		})
		api.Route("/public", func(p chi.Router) {
			p.Get("/signatures/{token}", s.handleFetchPublic)
			p.Post("/signatures/{token}/finalize", s.handleFinalizePublic)
			p.Get("/documents/{token}", s.handleDownloadPublic)
		})
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", r.RemoteAddr),
		)
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("panic",
					zap.Any("reason", rec),
					zap.ByteString("stack", debug.Stack()),
					zap.String("path", r.URL.Path),
				)
				writeJSON(w, http.StatusInternalServerError,
					errorBody{RequestID: NewRequestID(), Code: "INTERNAL", Message: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) owner(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := s.identity(r)
	if err != nil || id == uuid.Nil {
		writeJSON(w, http.StatusUnauthorized,
			errorBody{RequestID: NewRequestID(), Code: "UNAUTHORIZED", Message: "authentication required"})
		return uuid.Nil, false
	}
	return id, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.FromString(chi.URLParam(r, name))
	if err != nil {
		writeError(w, fmt.Errorf("invalid %s: %w", name, errs.ErrValidation))
		return uuid.Nil, false
	}
	return id, true
}

type documentJSON struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Signed    bool   `json:"signed"`
	CreatedAt string `json:"createdAt"`
}

func toDocumentJSON(d *model.Document) documentJSON {
	return documentJSON{
		ID:        d.ID.String(),
		Title:     d.Title,
		Status:    string(d.Status),
		Signed:    d.Status == model.DocumentSigned,
		CreatedAt: d.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type signatureJSON struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"documentId"`
	SignerKind string  `json:"signerKind"`
	PageNumber int     `json:"pageNumber"`
	XPercent   float64 `json:"xPercent"`
	YPercent   float64 `json:"yPercent"`
	Status     string  `json:"status"`
}

func toSignatureJSON(sig *model.Signature) signatureJSON {
	return signatureJSON{
		ID:         sig.ID.String(),
		DocumentID: sig.DocumentID.String(),
		SignerKind: string(sig.SignerKind),
		PageNumber: sig.PageNumber,
		XPercent:   sig.XPercent,
		YPercent:   sig.YPercent,
		Status:     string(sig.Status),
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes+1<<20)
	if err := r.ParseMultipartForm(s.maxBytes); err != nil {
		writeError(w, fmt.Errorf("malformed multipart body: %w", errs.ErrValidation))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, fmt.Errorf("file is required: %w", errs.ErrValidation))
		return
	}
	defer func() { _ = file.Close() }()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, fmt.Errorf("file is unreadable: %w", errs.ErrValidation))
		return
	}

	doc, err := s.docs.Upload(r.Context(), owner, r.FormValue("title"),
		header.Header.Get("Content-Type"), data, clientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"document": toDocumentJSON(doc)})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	docs, err := s.docs.List(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]documentJSON, 0, len(docs))
	for i := range docs {
		out = append(out, toDocumentJSON(&docs[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	doc, err := s.docs.Get(r.Context(), owner, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": toDocumentJSON(doc)})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.docs.Delete(r.Context(), owner, id, clientIP(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func servePDF(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".pdf"))
	_, _ = w.Write(data)
}

func (s *Server) handleDownloadOriginal(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	preview := r.URL.Query().Get("action") == "preview"
	data, name, err := s.docs.DownloadOriginal(r.Context(), owner, id, preview, clientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}
	servePDF(w, name, data)
}

func (s *Server) handleDownloadSigned(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	preview := r.URL.Query().Get("action") == "preview"
	data, name, err := s.docs.DownloadSigned(r.Context(), owner, id, preview, clientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}
	servePDF(w, name, data)
}

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	// Ownership gate: the trail of a foreign document is absence.
	if _, err := s.docs.Get(r.Context(), owner, id); err != nil {
		writeError(w, err)
		return
	}
	entries, err := s.audit.ListFor(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	type entryJSON struct {
		ActorKind string `json:"actorKind"`
		ActorRef  string `json:"actorRef"`
		Action    string `json:"action"`
		IPAddress string `json:"ipAddress"`
		CreatedAt string `json:"createdAt"`
	}
	out := make([]entryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryJSON{
			ActorKind: string(e.ActorKind),
			ActorRef:  e.ActorRef,
			Action:    string(e.Action),
			IPAddress: e.IPAddress,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": out})
}

func (s *Server) handleListSignatures(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	sigs, err := s.sigs.List(r.Context(), owner, id)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]signatureJSON, 0, len(sigs))
	for i := range sigs {
		out = append(out, toSignatureJSON(&sigs[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"signatures": out})
}

type placeRequest struct {
	DocumentID  string  `json:"documentId"`
	PageNumber  int     `json:"pageNumber"`
	XPercent    float64 `json:"xPercent"`
	YPercent    float64 `json:"yPercent"`
	SignerEmail string  `json:"signerEmail,omitempty"`
}

func (s *Server) handlePlaceInternal(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	var req placeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("malformed body: %w", errs.ErrValidation))
		return
	}
	docID, err := uuid.FromString(req.DocumentID)
	if err != nil {
		writeError(w, fmt.Errorf("invalid documentId: %w", errs.ErrValidation))
		return
	}
	sig, err := s.sigs.PlaceInternal(r.Context(), owner, docID, req.PageNumber, req.XPercent, req.YPercent, clientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"signature": toSignatureJSON(sig)})
}

func (s *Server) handlePlacePublic(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	var req placeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("malformed body: %w", errs.ErrValidation))
		return
	}
	docID, err := uuid.FromString(req.DocumentID)
	if err != nil {
		writeError(w, fmt.Errorf("invalid documentId: %w", errs.ErrValidation))
		return
	}
	sig, link, err := s.sigs.PlacePublic(r.Context(), owner, docID, req.PageNumber, req.XPercent, req.YPercent, req.SignerEmail, clientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"signature": toSignatureJSON(sig),
		"link":      link,
		"expiresAt": sig.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleDeleteSignature(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.sigs.Delete(r.Context(), owner, id, clientIP(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *Server) handleFinalizeInternal(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	doc, err := s.finalize.FinalizeInternal(r.Context(), owner, id, clientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": toDocumentJSON(doc)})
}

func (s *Server) handleFetchPublic(w http.ResponseWriter, r *http.Request) {
	view, err := s.sigs.FetchPublic(r.Context(),
		chi.URLParam(r, "token"), r.URL.Query().Get("email"), clientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documentTitle": view.DocumentTitle,
		"pageNumber":    view.PageNumber,
		"xPercent":      view.XPercent,
		"yPercent":      view.YPercent,
		"status":        string(view.Status),
		"emailHint":     view.EmailHint,
		"expiresAt":     view.ExpiresAt.UTC().Format(time.RFC3339),
		"emailVerified": view.EmailVerified,
	})
}

func (s *Server) handleFinalizePublic(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("malformed body: %w", errs.ErrValidation))
		return
	}
	doc, err := s.finalize.FinalizePublic(r.Context(), chi.URLParam(r, "token"), req.Email, clientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": toDocumentJSON(doc)})
}

func (s *Server) handleDownloadPublic(w http.ResponseWriter, r *http.Request) {
	kind := service.PublicDownloadKind(r.URL.Query().Get("type"))
	data, name, err := s.sigs.DownloadPublic(r.Context(),
		chi.URLParam(r, "token"), r.URL.Query().Get("email"), kind, clientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}
	servePDF(w, name, data)
}
