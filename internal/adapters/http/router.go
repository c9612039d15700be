package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/invoicestack/invoice-processor/internal/core/classify"
	"github.com/invoicestack/invoice-processor/internal/core/domain"
	"github.com/invoicestack/invoice-processor/internal/core/ports"
)

// Options carries the traffic shaping knobs and the optional metrics hooks
// for the router. Zero values disable the corresponding middleware.
type Options struct {
	Logger             *slog.Logger
	RateLimitPerSecond float64
	RateLimitBurst     int
	MaxInFlight        int
	BackpressureWait   time.Duration
	MaxBodyBytes       int64
	MetricsHandler     http.Handler
	MetricsMiddleware  func(next http.Handler) http.Handler
}

type Router struct {
	creator     ports.StackCreator
	importer    ports.EmailImporter
	reprocessor ports.DocumentReprocessor
	queries     ports.StackQueryService
	admin       ports.EndpointAdmin
	documents   ports.DocumentRepository
	blobs       ports.BlobStore
	opts        Options
}

func NewRouter(
	creator ports.StackCreator,
	importer ports.EmailImporter,
	reprocessor ports.DocumentReprocessor,
	queries ports.StackQueryService,
	admin ports.EndpointAdmin,
	documents ports.DocumentRepository,
	blobs ports.BlobStore,
	opts Options,
) *Router {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BackpressureWait <= 0 {
		opts.BackpressureWait = 2 * time.Second
	}
	return &Router{
		creator:     creator,
		importer:    importer,
		reprocessor: reprocessor,
		queries:     queries,
		admin:       admin,
		documents:   documents,
		blobs:       blobs,
		opts:        opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	if rt.opts.MetricsHandler != nil {
		mux.Handle("/metrics", rt.opts.MetricsHandler)
	}
	mux.HandleFunc("/api/stacks", rt.stacksCollection)
	mux.HandleFunc("/api/stacks/simulate-email", rt.simulateEmail)
	mux.HandleFunc("/api/stacks/", rt.stackByID)
	mux.HandleFunc("/api/documents/", rt.documentSubresource)
	mux.HandleFunc("/api/email-import", rt.forwardedEmail)
	mux.HandleFunc("/api/import-emails", rt.importEmails)
	mux.HandleFunc("/api/admin/endpoints", rt.listEndpoints)
	mux.HandleFunc("/api/admin/endpoints/storage-target", rt.upsertStorageTarget)
	mux.HandleFunc("/api/admin/endpoints/email-source", rt.emailSourceCollection)
	mux.HandleFunc("/api/admin/endpoints/email-source/", rt.emailSourceByID)

	var handler http.Handler = mux
	handler = bodyLimitMiddleware(handler, rt.opts.MaxBodyBytes)
	handler = rateLimitMiddleware(handler, rt.opts.RateLimitPerSecond, rt.opts.RateLimitBurst)
	handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, rt.opts.BackpressureWait)
	if rt.opts.MetricsMiddleware != nil {
		handler = rt.opts.MetricsMiddleware(handler)
	}
	handler = accessLogMiddleware(rt.opts.Logger, handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) stacksCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.createManualStack(w, r)
	case http.MethodGet:
		rt.listStacks(w, r)
	default:
		writeMethodNotAllowed(w)
	}
}

func (rt *Router) createManualStack(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		rt.createManualStackJSON(w, r)
		return
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "multipart form or json body is required"})
		return
	}

	req := ports.ManualStackRequest{
		From:    strings.TrimSpace(r.FormValue("from")),
		To:      strings.TrimSpace(r.FormValue("to")),
		Subject: strings.TrimSpace(r.FormValue("subject")),
		Body:    r.FormValue("body"),
	}

	if r.MultipartForm != nil {
		for _, fileHeader := range r.MultipartForm.File["attachments"] {
			file, err := fileHeader.Open()
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{
					"message": fmt.Sprintf("read attachment %q: %v", fileHeader.Filename, err),
				})
				return
			}
			content, err := io.ReadAll(file)
			file.Close()
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{
					"message": fmt.Sprintf("read attachment %q: %v", fileHeader.Filename, err),
				})
				return
			}
			req.Attachments = append(req.Attachments, ports.ManualAttachment{
				Filename:    fileHeader.Filename,
				ContentType: fileHeader.Header.Get("Content-Type"),
				Content:     content,
			})
		}
	}

	if req.Body == "" && len(req.Attachments) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "body or at least one attachment is required"})
		return
	}

	result, err := rt.creator.CreateManual(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createStackResponse(result))
}

// emailPayload is the JSON shape shared by the JSON manual submission and the
// forwarded-email endpoint. Content is base64 in transit.
type emailPayload struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	Attachments []struct {
		Filename    string `json:"filename"`
		ContentType string `json:"contentType"`
		Content     []byte `json:"content"`
	} `json:"attachments"`
}

func (rt *Router) createManualStackJSON(w http.ResponseWriter, r *http.Request) {
	var payload emailPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
		return
	}
	if payload.Body == "" && len(payload.Attachments) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "body or at least one attachment is required"})
		return
	}

	req := ports.ManualStackRequest{
		From:    strings.TrimSpace(payload.From),
		To:      strings.TrimSpace(payload.To),
		Subject: strings.TrimSpace(payload.Subject),
		Body:    payload.Body,
	}
	for _, att := range payload.Attachments {
		req.Attachments = append(req.Attachments, ports.ManualAttachment{
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Content:     att.Content,
		})
	}

	result, err := rt.creator.CreateManual(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createStackResponse(result))
}

// forwardedEmail ingests a raw email relayed by an upstream mail gateway. It
// runs the same pipeline as the scheduled import, minus the mailbox fetch.
func (rt *Router) forwardedEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var payload emailPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
		return
	}

	email := domain.RawEmail{
		SourceID: "forwarded",
		From:     payload.From,
		To:       payload.To,
		Subject:  payload.Subject,
		Body:     payload.Body,
	}
	for _, att := range payload.Attachments {
		email.Attachments = append(email.Attachments, domain.RawAttachment{
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Content:     att.Content,
		})
	}

	result, err := rt.creator.CreateFromEmail(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createStackResponse(result))
}

func (rt *Router) simulateEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var payload struct {
		From        string `json:"from"`
		To          string `json:"to"`
		Subject     string `json:"subject"`
		Body        string `json:"body"`
		Attachments []struct {
			Filename         string `json:"filename"`
			Type             string `json:"type"`
			ContentReference string `json:"contentReference"`
		} `json:"attachments"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
		return
	}

	req := ports.SimulatedEmailRequest{
		From:    payload.From,
		To:      payload.To,
		Subject: payload.Subject,
		Body:    payload.Body,
	}
	for _, att := range payload.Attachments {
		req.Attachments = append(req.Attachments, ports.SimulatedAttachment{
			Filename:         att.Filename,
			Type:             domain.DocumentType(att.Type),
			ContentReference: att.ContentReference,
		})
	}

	stackID, err := rt.creator.CreateSimulated(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"stackId": stackID.String()})
}

func (rt *Router) listStacks(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	size := queryInt(r, "size", 0)

	list, err := rt.queries.List(r.Context(), page, size)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (rt *Router) stackByID(w http.ResponseWriter, r *http.Request) {
	// Compatibility alias for clients that address the simulation endpoint
	// under a stack path. The submission always creates a new stack.
	if strings.HasSuffix(r.URL.Path, "/simulate-email") {
		rt.simulateEmail(w, r)
		return
	}

	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	stackID, ok := pathUUID(w, r.URL.Path, "/api/stacks/")
	if !ok {
		return
	}

	details, err := rt.queries.Details(r.Context(), stackID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (rt *Router) documentSubresource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	idPart, action, _ := strings.Cut(rest, "/")

	documentID, err := uuid.Parse(idPart)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid document id"})
		return
	}

	switch action {
	case "reextract":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		if err := rt.reprocessor.Reextract(r.Context(), documentID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"documentId": documentID.String(), "status": "reprocessed"})
	case "content":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		rt.documentContent(w, r, documentID)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "unknown document resource"})
	}
}

func (rt *Router) documentContent(w http.ResponseWriter, r *http.Request, documentID uuid.UUID) {
	doc, err := rt.documents.GetByID(r.Context(), documentID)
	if err != nil {
		writeError(w, err)
		return
	}

	content, err := rt.blobs.Get(r.Context(), doc.ContentLocation)
	if err != nil {
		writeError(w, err)
		return
	}

	filename := doc.Filename
	if filename == "" {
		filename = "document"
	}
	w.Header().Set("Content-Type", classify.MediaType(doc.Type, doc.Filename))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (rt *Router) importEmails(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	report, err := rt.importer.ImportUnread(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) listEndpoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	endpoints, err := rt.admin.ListEndpoints(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"endpoints": endpoints})
}

type endpointPayload struct {
	Name     string            `json:"name"`
	Settings map[string]string `json:"settings"`
}

func (rt *Router) upsertStorageTarget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeMethodNotAllowed(w)
		return
	}

	var payload endpointPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
		return
	}

	endpoint, err := rt.admin.UpsertByType(r.Context(), domain.EndpointStorageTarget, payload.Name, payload.Settings)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, endpoint)
}

func (rt *Router) emailSourceCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sources, err := rt.admin.ListEmailSources(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"endpoints": sources})
	case http.MethodPost:
		var payload endpointPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
			return
		}
		endpoint, err := rt.admin.CreateEmailSource(r.Context(), payload.Name, payload.Settings)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, endpoint)
	default:
		writeMethodNotAllowed(w)
	}
}

func (rt *Router) emailSourceByID(w http.ResponseWriter, r *http.Request) {
	endpointID, ok := pathUUID(w, r.URL.Path, "/api/admin/endpoints/email-source/")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPut:
		var payload endpointPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
			return
		}
		endpoint, err := rt.admin.UpdateEmailSource(r.Context(), endpointID, payload.Name, payload.Settings)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, endpoint)
	case http.MethodDelete:
		if err := rt.admin.DeleteEmailSource(r.Context(), endpointID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w)
	}
}

func createStackResponse(result ports.CreateStackResult) map[string]any {
	return map[string]any{
		"stackId":          result.StackID.String(),
		"documentsCreated": result.DocumentsCreated,
		"partialFailures":  result.PartialFailures,
	}
}

func pathUUID(w http.ResponseWriter, path, prefix string) (uuid.UUID, bool) {
	raw := strings.TrimSuffix(strings.TrimPrefix(path, prefix), "/")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid id in path"})
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"message": "method not allowed"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
