package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kemingtech/catalog-assistant/internal/core/domain"
	"github.com/kemingtech/catalog-assistant/internal/core/ports"
	"github.com/kemingtech/catalog-assistant/internal/core/usecase"
	"github.com/kemingtech/catalog-assistant/internal/observability/metrics"
)

type Options struct {
	Service        string
	RateLimitRPS   float64
	RateLimitBurst int
}

type Router struct {
	ingestor ports.DocumentIngestor
	query    ports.QueryService
	repo     ports.DocumentRepository
	index    ports.IndexLifecycle
	metrics  *metrics.HTTPServerMetrics
	logger   *slog.Logger
	opts     Options
}

func NewRouter(
	ingestor ports.DocumentIngestor,
	query ports.QueryService,
	repo ports.DocumentRepository,
	index ports.IndexLifecycle,
	m *metrics.HTTPServerMetrics,
	logger *slog.Logger,
	opts Options,
) *Router {
	if opts.Service == "" {
		opts.Service = "api"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		ingestor: ingestor,
		query:    query,
		repo:     repo,
		index:    index,
		metrics:  m,
		logger:   logger,
		opts:     opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/api/upload", rt.uploadDocument)
	mux.HandleFunc("/api/chat", rt.chat)
	mux.HandleFunc("/api/chat/stream", rt.chatStream)
	mux.HandleFunc("/api/documents", rt.listDocuments)
	mux.HandleFunc("/api/documents/", rt.deleteDocument)
	mux.HandleFunc("/api/products/", rt.productByID)
	mux.HandleFunc("/api/vector-store/stats", rt.vectorStoreStats)
	mux.HandleFunc("/api/vector-store/clear", rt.vectorStoreClear)
	mux.HandleFunc("/api/vector-store/reset", rt.vectorStoreReset)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = rateLimitMiddleware(rt.opts.RateLimitRPS, rt.opts.RateLimitBurst, handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.opts.Service, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingestor.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

type chatRequest struct {
	Question string           `json:"question"`
	History  []domain.Message `json:"history,omitempty"`
}

func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	req, ok := rt.decodeChatRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	result, err := rt.query.Answer(r.Context(), req.Question, req.History)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		class := string(usecase.Classify(req.Question))
		rt.metrics.RecordRAGObservation(rt.opts.Service, "/api/chat", class, len(result.Sources), time.Since(start))
	}

	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) chatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := rt.decodeChatRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	events := rt.query.AnswerStream(r.Context(), req.Question, req.History)
	sourceCount, err := streamSSE(w, events)
	if err != nil {
		rt.logger.Warn("sse stream aborted",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
		return
	}
	if rt.metrics != nil {
		class := string(usecase.Classify(req.Question))
		rt.metrics.RecordRAGObservation(rt.opts.Service, "/api/chat/stream", class, sourceCount, time.Since(start))
	}
}

func (rt *Router) decodeChatRequest(w http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	var req chatRequest
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return req, false
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return req, false
	}
	return req, true
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	docs, err := rt.repo.List(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"total":     len(docs),
	})
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	sourceID := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	if sourceID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	if err := rt.ingestor.Remove(r.Context(), sourceID); err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "source_id": sourceID})
}

func (rt *Router) productByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	productID := strings.TrimPrefix(r.URL.Path, "/api/products/")
	if productID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "product id is required"})
		return
	}

	chunks, err := rt.query.ProductByID(r.Context(), productID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"product_id": productID,
		"chunks":     chunks,
		"total":      len(chunks),
	})
}

func (rt *Router) vectorStoreStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	stats, err := rt.query.IndexStats(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) vectorStoreClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if err := rt.index.Reset(r.Context()); err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordIndexReset(rt.opts.Service, "clear")
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// vectorStoreReset schedules the two-phase hard reset: a marker is
// written now and consumed at the next startup, before any index
// handle exists.
func (rt *Router) vectorStoreReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if err := rt.index.MarkPendingReset(); err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordIndexReset(rt.opts.Service, "pending")
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "reset_scheduled",
		"message": "index will be recreated on next service restart",
	})
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		rt.logger.Error("request failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
