package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"
)

func TestEmbedSendsBatchAndDecodesVectors(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{0.1, 0.2}, {0.3, 0.4}},
		})
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed-model", Options{}))
	vectors, err := embedder.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if gotPath != "/api/embed" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["model"] != "embed-model" {
		t.Errorf("model = %v", gotBody["model"])
	}
	if len(vectors) != 2 || vectors[1][1] != 0.4 {
		t.Errorf("vectors = %v", vectors)
	}
}

func TestEmbedQueryUnwrapsSingleVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{1, 2, 3}},
		})
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed-model", Options{}))
	vector, err := embedder.EmbedQuery(context.Background(), "question")
	if err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if len(vector) != 3 || vector[2] != 3 {
		t.Errorf("vector = %v", vector)
	}
}

func TestGenerateTrimsResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["stream"] != false {
			t.Errorf("stream = %v, want false", body["stream"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "  答案文字\n"})
	}))
	defer server.Close()

	generator := NewGenerator(New(server.URL, "gen-model", "embed", Options{}))
	answer, err := generator.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if answer != "答案文字" {
		t.Errorf("answer = %q", answer)
	}
}

func TestGenerateSurfacesNonRetryableStatus(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	generator := NewGenerator(New(server.URL, "missing", "embed", Options{}))
	_, err := generator.Generate(context.Background(), "prompt")

	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("err = %v, want HTTPStatusError 404", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, a 404 must not be retried", calls)
	}
}

func TestClassifyOllamaErrorRetryableStatuses(t *testing.T) {
	for _, code := range []int{http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		decision := classifyOllamaError(&HTTPStatusError{StatusCode: code})
		if !decision.Retryable {
			t.Errorf("status %d should be retryable", code)
		}
	}
	decision := classifyOllamaError(&HTTPStatusError{StatusCode: http.StatusBadRequest})
	if decision.Retryable {
		t.Error("400 must not be retryable")
	}
}

func TestClassifyOllamaErrorContextAndNetwork(t *testing.T) {
	if classifyOllamaError(context.Canceled).Retryable {
		t.Error("canceled context must not be retried")
	}
	netErr := &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}
	if !classifyOllamaError(netErr).Retryable {
		t.Error("connection refused should be retryable")
	}
}

func TestEmbedEmptyInputSkipsTransport(t *testing.T) {
	embedder := NewEmbedder(New("http://127.0.0.1:1", "gen", "embed", Options{}))
	vectors, err := embedder.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if vectors != nil {
		t.Errorf("vectors = %v, want nil", vectors)
	}
}
