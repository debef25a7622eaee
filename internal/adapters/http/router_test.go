package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kemingtech/catalog-assistant/internal/core/domain"
)

type ingestorFake struct {
	uploadErr  error
	removeErr  error
	removedIDs []string
}

func (f *ingestorFake) Upload(_ context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	if _, err := io.ReadAll(body); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &domain.Document{
		ID:          "doc-1",
		SourceID:    "doc-1_file.txt",
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: "doc-1_file.txt",
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (f *ingestorFake) Remove(_ context.Context, sourceID string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removedIDs = append(f.removedIDs, sourceID)
	return nil
}

type queryFake struct {
	result        *domain.QueryResult
	stats         domain.IndexStats
	productChunks []domain.Chunk
	productID     string
	err           error
}

func (f *queryFake) Answer(_ context.Context, question string, _ []domain.Message) (*domain.QueryResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *queryFake) AnswerStream(ctx context.Context, question string, history []domain.Message) <-chan domain.StreamEvent {
	events := make(chan domain.StreamEvent)
	go func() {
		defer close(events)
		if f.err != nil {
			events <- domain.StreamEvent{Kind: domain.StreamError, Err: f.err.Error()}
			return
		}
		for _, r := range f.result.Answer {
			events <- domain.StreamEvent{Kind: domain.StreamDelta, Text: string(r)}
		}
		events <- domain.StreamEvent{Kind: domain.StreamSources, Sources: f.result.Sources}
		events <- domain.StreamEvent{Kind: domain.StreamDone}
	}()
	return events
}

func (f *queryFake) ProductByID(_ context.Context, productID string) ([]domain.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.productID = productID
	return f.productChunks, nil
}

func (f *queryFake) IndexStats(_ context.Context) (domain.IndexStats, error) {
	if f.err != nil {
		return domain.IndexStats{}, f.err
	}
	return f.stats, nil
}

type repoFake struct {
	docs []domain.Document
	err  error
}

func (f *repoFake) Create(_ context.Context, _ *domain.Document) error { return nil }
func (f *repoFake) GetBySourceID(_ context.Context, _ string) (*domain.Document, error) {
	return nil, domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("missing"))
}
func (f *repoFake) List(_ context.Context) ([]domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}
func (f *repoFake) UpdateStatus(_ context.Context, _ string, _ domain.DocumentStatus, _ int, _ string) error {
	return nil
}
func (f *repoFake) DeleteBySourceID(_ context.Context, _ string) error { return nil }

type indexFake struct {
	resetCalls  int
	markedReset bool
	resetErr    error
}

func (f *indexFake) Upsert(_ context.Context, _ []domain.Chunk) error         { return nil }
func (f *indexFake) Delete(_ context.Context, _ map[string]string) error      { return nil }
func (f *indexFake) Search(_ context.Context, _ string, _ int, _ map[string]string) ([]domain.ScoredChunk, error) {
	return nil, nil
}
func (f *indexFake) GetByFilter(_ context.Context, _ map[string]string) ([]domain.Chunk, error) {
	return nil, nil
}
func (f *indexFake) Stats(_ context.Context) (domain.IndexStats, error) {
	return domain.IndexStats{}, nil
}
func (f *indexFake) Reset(_ context.Context) error {
	if f.resetErr != nil {
		return f.resetErr
	}
	f.resetCalls++
	return nil
}
func (f *indexFake) Refresh(_ context.Context) error { return nil }
func (f *indexFake) MarkPendingReset() error {
	f.markedReset = true
	return nil
}

func newTestRouter(ingestor *ingestorFake, query *queryFake, repo *repoFake, index *indexFake) http.Handler {
	if ingestor == nil {
		ingestor = &ingestorFake{}
	}
	if query == nil {
		query = &queryFake{result: &domain.QueryResult{Answer: "ok", Sources: []domain.SourceRecord{}}}
	}
	if repo == nil {
		repo = &repoFake{}
	}
	if index == nil {
		index = &indexFake{}
	}
	return NewRouter(ingestor, query, repo, index, nil, nil, Options{}).Handler()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestUploadDocumentSuccess(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, nil)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "file.txt")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}

	var docResp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&docResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if docResp["id"] != "doc-1" {
		t.Fatalf("unexpected response: %+v", docResp)
	}
}

func TestUploadDocumentMissingMultipartField(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewBufferString("plain-text"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestChatReturnsAnswerWithSources(t *testing.T) {
	query := &queryFake{result: &domain.QueryResult{
		Answer: "LED 工作燈",
		Sources: []domain.SourceRecord{
			{Content: "產品ID: HL-2001", Score: 0.91},
		},
	}}
	handler := newTestRouter(nil, query, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"question":"HL-2001 的規格?"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var result domain.QueryResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Answer != "LED 工作燈" {
		t.Errorf("answer = %q", result.Answer)
	}
	if len(result.Sources) != 1 || result.Sources[0].Score != 0.91 {
		t.Errorf("sources = %+v", result.Sources)
	}
}

func TestChatEmptyQuestionRejected(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"question":"  "}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestChatMapsInvalidQueryTo400(t *testing.T) {
	query := &queryFake{err: domain.WrapError(domain.ErrInvalidQuery, "answer", errors.New("bad"))}
	handler := newTestRouter(nil, query, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"question":"hi"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestChatStreamEmitsSSEFrames(t *testing.T) {
	query := &queryFake{result: &domain.QueryResult{
		Answer:  "ab",
		Sources: []domain.SourceRecord{{Content: "c1", Score: 0.5}},
	}}
	handler := newTestRouter(nil, query, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader(`{"question":"hi"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content type = %q", got)
	}

	body := res.Body.String()
	wantPrefix := "data: a\n\ndata: b\n\n"
	if !strings.HasPrefix(body, wantPrefix) {
		t.Errorf("body does not start with delta frames: %q", body)
	}
	if !strings.Contains(body, "data: [SOURCES][") || !strings.Contains(body, "[/SOURCES]\n\n") {
		t.Errorf("missing sources frame: %q", body)
	}
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Errorf("missing terminal done frame: %q", body)
	}
}

func TestChatStreamErrorFrame(t *testing.T) {
	query := &queryFake{err: errors.New("backend exploded")}
	handler := newTestRouter(nil, query, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader(`{"question":"hi"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	body := res.Body.String()
	if !strings.Contains(body, "data: [ERROR]backend exploded[/ERROR]\n\n") {
		t.Errorf("missing error frame: %q", body)
	}
	if strings.Contains(body, "[DONE]") {
		t.Errorf("error stream must not contain done frame: %q", body)
	}
}

func TestListDocuments(t *testing.T) {
	repo := &repoFake{docs: []domain.Document{
		{ID: "a", SourceID: "a_f.txt", Status: domain.StatusReady},
		{ID: "b", SourceID: "b_g.pdf", Status: domain.StatusProcessing},
	}}
	handler := newTestRouter(nil, nil, repo, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var payload struct {
		Documents []domain.Document `json:"documents"`
		Total     int               `json:"total"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Total != 2 || len(payload.Documents) != 2 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestDeleteDocumentNotFound(t *testing.T) {
	ingestor := &ingestorFake{removeErr: domain.WrapError(domain.ErrDocumentNotFound, "remove", errors.New("missing"))}
	handler := newTestRouter(ingestor, nil, nil, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/nope", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestDeleteDocumentPassesSourceID(t *testing.T) {
	ingestor := &ingestorFake{}
	handler := newTestRouter(ingestor, nil, nil, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/doc-1_file.txt", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if len(ingestor.removedIDs) != 1 || ingestor.removedIDs[0] != "doc-1_file.txt" {
		t.Fatalf("removed ids = %v", ingestor.removedIDs)
	}
}

func TestProductByIDEndpoint(t *testing.T) {
	query := &queryFake{productChunks: []domain.Chunk{
		{Text: "頭燈 HL-2001", SourceID: "catalog.json", Metadata: map[string]string{"product_id": "HL-2001"}},
	}}
	handler := newTestRouter(nil, query, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/products/HL-2001", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if query.productID != "HL-2001" {
		t.Fatalf("expected lookup for HL-2001, got %q", query.productID)
	}
	var payload struct {
		ProductID string         `json:"product_id"`
		Chunks    []domain.Chunk `json:"chunks"`
		Total     int            `json:"total"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Total != 1 || len(payload.Chunks) != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestProductByIDRequiresID(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/products/", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestVectorStoreStats(t *testing.T) {
	query := &queryFake{stats: domain.IndexStats{
		TotalChunks:   7,
		UniqueSources: 2,
		PerSource:     map[string]int{"a": 3, "b": 4},
	}}
	handler := newTestRouter(nil, query, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/vector-store/stats", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var stats domain.IndexStats
	if err := json.NewDecoder(res.Body).Decode(&stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.TotalChunks != 7 || stats.UniqueSources != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestVectorStoreClearResetsImmediately(t *testing.T) {
	index := &indexFake{}
	handler := newTestRouter(nil, nil, nil, index)

	req := httptest.NewRequest(http.MethodDelete, "/api/vector-store/clear", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if index.resetCalls != 1 {
		t.Fatalf("reset calls = %d, want 1", index.resetCalls)
	}
	if index.markedReset {
		t.Fatal("clear must not schedule a pending reset")
	}
}

func TestVectorStoreResetSchedulesMarker(t *testing.T) {
	index := &indexFake{}
	handler := newTestRouter(nil, nil, nil, index)

	req := httptest.NewRequest(http.MethodPost, "/api/vector-store/reset", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	if !index.markedReset {
		t.Fatal("expected pending reset marker")
	}
	if index.resetCalls != 0 {
		t.Fatalf("reset calls = %d, want 0 (two-phase)", index.resetCalls)
	}
}

func TestRateLimitMiddlewareSheds(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := rateLimitMiddleware(1, 1, inner)

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/chat", nil))
		statuses = append(statuses, res.Code)
	}

	if statuses[0] != http.StatusOK {
		t.Fatalf("first request = %d, want 200", statuses[0])
	}
	limited := 0
	for _, s := range statuses[1:] {
		if s == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited == 0 {
		t.Fatalf("expected at least one 429, got %v", statuses)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if got := res.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("request id header = %q, want req-42", got)
	}
}
