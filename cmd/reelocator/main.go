package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"

	"reelocator/internal/analyzer"
	"reelocator/internal/config"
	"reelocator/internal/embeddings"
	"reelocator/internal/extractor"
	"reelocator/internal/metrics"
	"reelocator/internal/places"
	"reelocator/internal/server"
	"reelocator/internal/storage"
	"reelocator/internal/vision"
	"reelocator/internal/vision/gemini"
	"reelocator/internal/vision/ollamaeng"
	"reelocator/internal/vision/openaieng"
)

func main() {
	ctx := context.Background()

	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: "15:04:05",
		}),
	)

	videoPath := flag.String("video", "", "path to the reel video file")
	outputDir := flag.String("output", "", "directory for extracted frames and results")
	workers := flag.Int("workers", 0, "number of parallel inference workers")
	maxFrames := flag.Int("frames", 0, "maximum frames to sample from the video")
	days := flag.Int("days", 0, "plan an itinerary for this many days (0 = locate only)")
	provider := flag.String("provider", "", "inference provider: gemini, openai or ollama")
	initSchema := flag.Bool("init-schema", false, "create the Postgres schema and exit")
	search := flag.String("search", "", "find past runs with landmarks similar to this text and exit")
	searchLimit := flag.Int("search-limit", 5, "maximum similarity hits to print")
	flag.Parse()

	cfg := config.Load()
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *maxFrames > 0 {
		cfg.MaxFrames = *maxFrames
	}
	if *provider != "" {
		cfg.Provider = *provider
	}

	if *initSchema {
		if !cfg.HasPostgres() {
			fatal(logger, "POSTGRES_URL is not set", nil)
		}
		if err := storage.InitSchema(ctx, cfg.PostgresURL); err != nil {
			fatal(logger, "failed to initialize schema", err)
		}
		logger.Info("schema initialized")
		return
	}

	if *search != "" {
		searchRuns(ctx, cfg, logger, *search, *searchLimit)
		return
	}

	if *videoPath == "" {
		fmt.Println("Usage: reelocator --video path/to/reel.mp4 [--days 2] [--output output_frames]")
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fatal(logger, "invalid configuration", err)
	}

	store := metrics.NewStore()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := server.Start(cfg.MetricsAddr, store, logger); err != nil {
				logger.Error("diagnostics server failed", "error", err)
			}
		}()
	}

	engines := &vision.Engines{}
	if cfg.GoogleAPIKey != "" {
		engines.Gemini = gemini.New(cfg.GoogleAPIKey, cfg.GeminiModel)
	}
	if cfg.OpenAIAPIKey != "" {
		engines.OpenAI = openaieng.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	}
	ollamaEngine, err := ollamaeng.New(ctx, logger, cfg.OllamaBaseURL, cfg.OllamaPort, cfg.OllamaModel)
	if err != nil {
		logger.Warn("ollama engine unavailable", "error", err)
	} else {
		engines.Ollama = ollamaEngine
	}

	engine, err := engines.Get(cfg.Provider)
	if err != nil {
		fatal(logger, "no usable inference engine", err)
	}

	var searcher analyzer.PlacesSearcher
	if cfg.HasPlaces() {
		client, err := places.NewClient(cfg.PlacesAPIKey)
		if err != nil {
			fatal(logger, "failed to build places client", err)
		}
		searcher = client
	} else {
		logger.Warn("GOOGLE_PLACES_API_KEY not set, itineraries will skip places search")
	}

	runStore, flush := buildRunStore(ctx, cfg, logger)
	defer flush()

	pipeline := analyzer.NewPipeline(analyzer.PipelineConfig{
		Extractor: extractor.New(logger),
		Engine:    engine,
		Places:    searcher,
		Store:     runStore,
		Metrics:   store,
		Logger:    logger,
		Workers:   cfg.Workers,
	})

	if *days > 0 {
		run, _, err := pipeline.PlanItinerary(ctx, *videoPath, cfg.OutputDir, cfg.MaxFrames, *days)
		if err != nil {
			reportStage(logger, err)
		}
		fmt.Println(run.Itinerary)
		fmt.Println()
		fmt.Print(metrics.Render(store.Snapshot()))
		return
	}

	location, iters, _, err := pipeline.AnalyzeLocation(ctx, *videoPath, cfg.OutputDir, cfg.MaxFrames)
	if err != nil {
		reportStage(logger, err)
	}

	out, _ := json.MarshalIndent(location, "", "  ")
	fmt.Println(string(out))
	logger.Info("analysis complete",
		"city", location.City,
		"country", location.Country,
		"iterations", iters,
	)
	fmt.Print(metrics.Render(store.Snapshot()))
}

// searchRuns looks up past runs whose landmark embeddings are close to the
// query text and prints one line per hit.
func searchRuns(ctx context.Context, cfg *config.Config, logger *slog.Logger, query string, limit int) {
	if !cfg.HasPostgres() {
		fatal(logger, "POSTGRES_URL is required for similarity search", nil)
	}
	if cfg.OpenAIAPIKey == "" {
		fatal(logger, "OPENAI_API_KEY is required to embed the search query", nil)
	}

	svc := embeddings.NewService(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel, 4)
	defer svc.Close()

	pg, err := storage.NewPostgresStore(ctx, cfg.PostgresURL, svc)
	if err != nil {
		fatal(logger, "failed to connect to the run store", err)
	}
	defer pg.Close()

	results, err := pg.SearchSimilarRuns(ctx, query, limit)
	if err != nil {
		fatal(logger, "similarity search failed", err)
	}
	if len(results) == 0 {
		fmt.Println("No similar runs found.")
		return
	}

	for _, r := range results {
		fmt.Printf("%.3f  %-30s  %s, %s  (run %s)\n",
			r.Similarity, r.Landmark, r.City, r.Country, r.RunID)
	}
}

// buildRunStore picks Postgres when configured and falls back to the JSON
// file store. The returned flush func is safe to call either way.
func buildRunStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, func()) {
	if cfg.HasPostgres() {
		var embedder embeddings.Embedder
		var svc *embeddings.Service
		if cfg.OpenAIAPIKey != "" {
			svc = embeddings.NewService(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel, 4)
			embedder = svc
		}

		pg, err := storage.NewPostgresStore(ctx, cfg.PostgresURL, embedder)
		if err != nil {
			logger.Warn("postgres unavailable, falling back to file store", "error", err)
			if svc != nil {
				svc.Close()
			}
		} else {
			return pg, func() {
				pg.Close()
				if svc != nil {
					svc.Close()
				}
			}
		}
	}

	fs := storage.NewFileStore(cfg.OutputDir)
	return fs, func() {
		if err := fs.Flush(); err != nil {
			logger.Error("failed to flush run store", "error", err)
		}
	}
}

// reportStage logs a failure with its pipeline stage and exits; the error
// payload replaces the result, nothing best-effort is printed.
func reportStage(logger *slog.Logger, err error) {
	var se *analyzer.StageError
	if errors.As(err, &se) {
		logger.Error("pipeline failed", "stage", se.Stage, "error", se.Err)
	} else {
		logger.Error("pipeline failed", "error", err)
	}
	os.Exit(1)
}

func fatal(logger *slog.Logger, msg string, err error) {
	if err != nil {
		logger.Error(msg, "error", err)
	} else {
		logger.Error(msg)
	}
	os.Exit(1)
}
