package embeddings

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

const embeddingBody = `{
	"object": "list",
	"data": [{"object": "embedding", "index": 0, "embedding": [0.1, 0.2, 0.3]}],
	"model": "text-embedding-3-small",
	"usage": {"prompt_tokens": 1, "total_tokens": 1}
}`

func embeddingFixture(t *testing.T, requests *atomic.Int64) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(embeddingBody))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestEmbedCachesRepeatedContent(t *testing.T) {
	var requests atomic.Int64
	ts := embeddingFixture(t, &requests)

	svc := NewService("test-key", ts.URL, "text-embedding-3-small", 2)
	defer svc.Close()

	ctx := context.Background()
	first, err := svc.Embed(ctx, "Sagrada Familia")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(first) != 3 || first[0] != 0.1 {
		t.Errorf("unexpected vector %v", first)
	}

	second, err := svc.Embed(ctx, "Sagrada Familia")
	if err != nil {
		t.Fatalf("Embed (repeat): %v", err)
	}
	if len(second) != 3 {
		t.Errorf("unexpected cached vector %v", second)
	}

	if got := requests.Load(); got != 1 {
		t.Errorf("expected 1 API call for repeated content, got %d", got)
	}
}

func TestEmbedDistinctContent(t *testing.T) {
	var requests atomic.Int64
	ts := embeddingFixture(t, &requests)

	svc := NewService("test-key", ts.URL, "text-embedding-3-small", 2)
	defer svc.Close()

	ctx := context.Background()
	if _, err := svc.Embed(ctx, "Park Guell"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if _, err := svc.Embed(ctx, "Casa Mila"); err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if got := requests.Load(); got != 2 {
		t.Errorf("expected 2 API calls for distinct content, got %d", got)
	}
}

func TestEmbedPropagatesAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "rate limited"}}`, http.StatusTooManyRequests)
	}))
	t.Cleanup(ts.Close)

	svc := NewService("test-key", ts.URL, "text-embedding-3-small", 1)
	defer svc.Close()

	if _, err := svc.Embed(context.Background(), "Montjuic"); err == nil {
		t.Fatal("expected an error from the embeddings endpoint")
	}
}
