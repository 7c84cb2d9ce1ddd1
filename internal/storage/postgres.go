package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"reelocator/internal/embeddings"
	"reelocator/internal/models"
)

// PostgresStore persists runs in Postgres and indexes landmark embeddings
// with pgvector so past runs can be searched by similarity.
type PostgresStore struct {
	pool     *pgxpool.Pool
	embedder embeddings.Embedder
}

// NewPostgresStore connects to the database and verifies the connection.
// The embedder may be nil; landmarks are then stored without vectors.
func NewPostgresStore(ctx context.Context, connString string, embedder embeddings.Embedder) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool, embedder: embedder}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// SaveRun stores the run row and one row per landmark, embedding the
// landmark names when an embedder is available. An embedding failure is
// tolerated; the landmark row is written without a vector.
func (s *PostgresStore) SaveRun(ctx context.Context, run models.AnalysisRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs
		(id, video_name, city, country, region, avg_confidence, iterations, frame_count, itinerary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.VideoName,
		run.Location.City, run.Location.Country, run.Location.Region,
		run.Location.AvgConfidence, run.Iterations, run.FrameCount,
		run.Itinerary, time.Now())
	if err != nil {
		return fmt.Errorf("failed to store run: %w", err)
	}

	for _, lm := range run.Location.Landmarks {
		var vec *pgvector.Vector
		if s.embedder != nil {
			if embedding, err := s.embedder.Embed(ctx, lm.Name); err == nil {
				v := pgvector.NewVector(embedding)
				vec = &v
			}
		}

		_, err := s.pool.Exec(ctx,
			`INSERT INTO run_landmarks
			(run_id, name, confidence, evidence, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			run.ID, lm.Name, lm.Confidence, lm.Evidence, vec, time.Now())
		if err != nil {
			return fmt.Errorf("failed to store landmark %q: %w", lm.Name, err)
		}
	}

	return nil
}

// Flush is a no-op; Postgres writes are immediate.
func (s *PostgresStore) Flush() error { return nil }

// SearchSimilarRuns finds past runs whose landmarks are semantically close
// to the query text.
func (s *PostgresStore) SearchSimilarRuns(ctx context.Context, query string, limit int) ([]models.RunSearchResult, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("similarity search requires an embedder")
	}
	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.city, r.country, l.name,
		1 - (l.embedding <=> $1) AS similarity
		FROM run_landmarks l
		JOIN runs r ON l.run_id = r.id
		WHERE l.embedding IS NOT NULL
		ORDER BY l.embedding <=> $1
		LIMIT $2`,
		pgvector.NewVector(queryEmbedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search runs: %w", err)
	}
	defer rows.Close()

	return scanSearchResults(rows)
}

func scanSearchResults(rows pgx.Rows) ([]models.RunSearchResult, error) {
	var results []models.RunSearchResult
	for rows.Next() {
		var r models.RunSearchResult
		if err := rows.Scan(&r.RunID, &r.City, &r.Country, &r.Landmark, &r.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// InitSchema creates the pgvector extension and the run tables.
func InitSchema(ctx context.Context, connString string) error {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	_, err = conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS runs (
            id UUID PRIMARY KEY,
            video_name VARCHAR(255) NOT NULL,
            city VARCHAR(255) NOT NULL,
            country VARCHAR(255) NOT NULL,
            region VARCHAR(255),
            avg_confidence DOUBLE PRECISION,
            iterations INTEGER NOT NULL,
            frame_count INTEGER NOT NULL,
            itinerary TEXT,
            created_at TIMESTAMPTZ NOT NULL
        );

        CREATE TABLE IF NOT EXISTS run_landmarks (
            id SERIAL PRIMARY KEY,
            run_id UUID REFERENCES runs(id) ON DELETE CASCADE,
            name VARCHAR(255) NOT NULL,
            confidence DOUBLE PRECISION NOT NULL,
            evidence TEXT,
            embedding vector(1536),
            created_at TIMESTAMPTZ NOT NULL
        );
    `)
	if err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}

	_, err = conn.Exec(ctx, `
        CREATE INDEX IF NOT EXISTS idx_run_landmarks_run_id ON run_landmarks(run_id);
        CREATE INDEX IF NOT EXISTS idx_run_landmarks_embedding ON run_landmarks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
    `)
	if err != nil {
		return fmt.Errorf("failed to create database indexes: %w", err)
	}

	return nil
}
