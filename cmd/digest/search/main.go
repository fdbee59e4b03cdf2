// Package main provides a CLI command for semantic search over the
// summary vector index.
// Usage: pulse-digest-search "query" [--k N] [--kind video|web] [--category C] [--output json]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"pulse-digest/internal/config"
	"pulse-digest/internal/domain/entity"
	pgRepo "pulse-digest/internal/infra/adapter/persistence/postgres"
	"pulse-digest/internal/infra/db"
	"pulse-digest/internal/infra/embedder"
	"pulse-digest/internal/usecase/search"
)

// SearchOutput is the JSON output format for search results.
type SearchOutput struct {
	Query       string      `json:"query"`
	ResultCount int         `json:"result_count"`
	Hits        []HitOutput `json:"hits"`
}

// HitOutput is a single hit in the search results.
type HitOutput struct {
	RecordID    string  `json:"record_id"`
	Kind        string  `json:"kind"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Summary     string  `json:"summary"`
	Category    string  `json:"category,omitempty"`
	SourceName  string  `json:"source_name"`
	PublishedAt string  `json:"published_at"`
	Similarity  float64 `json:"similarity"`
}

func main() {
	var (
		k            int
		kind         string
		category     string
		outputFormat string
	)

	flag.IntVar(&k, "k", search.DefaultK, "Maximum number of results to return")
	flag.StringVar(&kind, "kind", "", "Restrict to one article kind: video or web")
	flag.StringVar(&category, "category", "", "Restrict to one web category")
	flag.StringVar(&outputFormat, "output", "text", "Output format: text or json")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Error: Search query is required")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage: pulse-digest-search \"query\" [--k N] [--kind video|web] [--category C] [--output json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Examples:")
		fmt.Fprintln(os.Stderr, "  pulse-digest-search \"agent frameworks\"")
		fmt.Fprintln(os.Stderr, "  pulse-digest-search \"model releases\" --k 20 --kind web")
		fmt.Fprintln(os.Stderr, "  pulse-digest-search \"benchmarks\" --category research --output json")
		os.Exit(1)
	}
	query := args[0]

	logger := initLogger()

	if kind != "" && !entity.ArticleKind(kind).IsValid() {
		fmt.Fprintf(os.Stderr, "Error: unknown kind %q (want video or web)\n", kind)
		os.Exit(1)
	}
	if k > search.MaxK {
		fmt.Fprintf(os.Stderr, "Warning: k %d exceeds maximum %d, using %d\n", k, search.MaxK, search.MaxK)
		k = search.MaxK
	}

	embCfg, err := config.LoadEmbeddingConfig()
	if err != nil {
		logger.Error("failed to load embedding configuration", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Failed to load embedding configuration: %v\n", err)
		os.Exit(1)
	}

	database := db.Open()
	defer func() {
		if closeErr := database.Close(); closeErr != nil {
			logger.Error("failed to close database", slog.Any("error", closeErr))
		}
	}()

	searchSvc := search.NewService(pgRepo.NewVectorRepo(database), embedder.New(embCfg))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("searching index",
		slog.String("query", query),
		slog.Int("k", k),
		slog.String("kind", kind),
		slog.String("category", category))

	hits, err := searchSvc.Search(ctx, search.Request{
		Query: query,
		K:     k,
		Filter: entity.SearchFilter{
			Kind:     entity.ArticleKind(kind),
			Category: entity.Category(category),
		},
	})
	if err != nil {
		logger.Error("search failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Search failed: %v\n", err)
		os.Exit(1)
	}

	if outputFormat == "json" {
		outputJSON(query, hits)
	} else {
		outputText(query, hits)
	}
}

// outputText prints search results in human-readable format.
func outputText(query string, hits []entity.SearchHit) {
	fmt.Printf("Search Results for: %q\n", query)
	fmt.Printf("Results: %d\n\n", len(hits))

	if len(hits) == 0 {
		fmt.Println("No records found matching your query.")
		return
	}

	for i, hit := range hits {
		fmt.Printf("%d. [%s] %s\n", i+1, hit.ArticleKind, hit.Title)
		fmt.Printf("   Similarity: %.2f%%\n", hit.Similarity*100)
		fmt.Printf("   Source: %s", hit.SourceName)
		if hit.Category != "" {
			fmt.Printf(" (%s)", hit.Category)
		}
		fmt.Println()
		fmt.Printf("   Published: %s\n", hit.PublishedAt.Format(time.RFC3339))
		fmt.Printf("   URL: %s\n", hit.URL)
		if hit.Summary != "" {
			fmt.Printf("   Summary: %s\n", hit.Summary)
		}
		fmt.Println()
	}
}

// outputJSON prints search results in JSON format.
func outputJSON(query string, hits []entity.SearchHit) {
	out := SearchOutput{
		Query:       query,
		ResultCount: len(hits),
		Hits:        make([]HitOutput, len(hits)),
	}
	for i, hit := range hits {
		out.Hits[i] = HitOutput{
			RecordID:    hit.RecordID,
			Kind:        string(hit.ArticleKind),
			Title:       hit.Title,
			URL:         hit.URL,
			Summary:     hit.Summary,
			Category:    string(hit.Category),
			SourceName:  hit.SourceName,
			PublishedAt: hit.PublishedAt.Format(time.RFC3339),
			Similarity:  hit.Similarity,
		}
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to encode JSON: %v\n", err)
		os.Exit(1)
	}
}

// initLogger initializes and returns a structured logger.
func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}
