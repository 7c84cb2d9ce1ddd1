// Package embeddings generates text embeddings through a small worker
// pool, caching results so repeated landmark names cost one API call.
package embeddings

import (
	"context"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// Result is the outcome of one embedding request.
type Result struct {
	Content   string
	Embedding []float32
	Error     error
}

// Work is a unit of embedding work.
type Work struct {
	Content string
	Result  chan<- Result
}

// Embedder turns text into a vector. Satisfied by Service and by test
// fakes.
type Embedder interface {
	Embed(ctx context.Context, content string) ([]float32, error)
}

// Service manages embedding generation and caching behind a worker pool.
type Service struct {
	client     *openai.Client
	model      string
	numWorkers int
	workQueue  chan Work
	cache      sync.Map
	wg         sync.WaitGroup
}

// NewService starts numWorkers goroutines against an OpenAI-compatible
// embeddings endpoint.
func NewService(apiKey, baseURL, model string, numWorkers int) *Service {
	if numWorkers <= 0 {
		numWorkers = 4
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	s := &Service{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		numWorkers: numWorkers,
		workQueue:  make(chan Work, 100),
	}
	s.startWorkers()
	return s
}

func (s *Service) startWorkers() {
	for i := 0; i < s.numWorkers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for work := range s.workQueue {
				if cached, ok := s.cache.Load(work.Content); ok {
					if embedding, valid := cached.([]float32); valid {
						work.Result <- Result{Content: work.Content, Embedding: embedding}
						continue
					}
				}

				embedding, err := s.generate(context.Background(), work.Content)
				if err == nil {
					s.cache.Store(work.Content, embedding)
				}

				work.Result <- Result{
					Content:   work.Content,
					Embedding: embedding,
					Error:     err,
				}
			}
		}()
	}
}

// GetEmbedding requests an embedding asynchronously. When the queue is
// full the result carries an error instead of blocking the caller.
func (s *Service) GetEmbedding(content string) <-chan Result {
	resultChan := make(chan Result, 1)

	select {
	case s.workQueue <- Work{Content: content, Result: resultChan}:
	default:
		resultChan <- Result{
			Content: content,
			Error:   fmt.Errorf("embedding queue is full, try again later"),
		}
		close(resultChan)
	}

	return resultChan
}

// Embed resolves one embedding through the cache and the worker pool,
// so concurrent callers share at most numWorkers in-flight API calls.
func (s *Service) Embed(ctx context.Context, content string) ([]float32, error) {
	if cached, ok := s.cache.Load(content); ok {
		if embedding, valid := cached.([]float32); valid {
			return embedding, nil
		}
	}

	select {
	case result := <-s.GetEmbedding(content):
		if result.Error != nil {
			return nil, result.Error
		}
		return result.Embedding, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) generate(ctx context.Context, content string) ([]float32, error) {
	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{content},
		Model: openai.EmbeddingModel(s.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response carried no data")
	}
	return resp.Data[0].Embedding, nil
}

// Close shuts the pool down and waits for in-flight work.
func (s *Service) Close() {
	if s.workQueue != nil {
		close(s.workQueue)
	}
	s.wg.Wait()
}
