package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/meetgraph/meetgraph/internal/config"
	"github.com/meetgraph/meetgraph/internal/embedding"
	"github.com/meetgraph/meetgraph/internal/extractor"
	"github.com/meetgraph/meetgraph/internal/llmproc"
	"github.com/meetgraph/meetgraph/internal/processor"
	"github.com/meetgraph/meetgraph/internal/query"
	"github.com/meetgraph/meetgraph/internal/resolver"
	"github.com/meetgraph/meetgraph/internal/storage"
)

const version = "0.1.0"

func main() {
	fmt.Printf("meetgraph %s — meeting transcripts to a queryable knowledge graph\n\n", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nShutting down...")
		cancel()
		os.Exit(0)
	}()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(".env")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	rel, err := storage.OpenRelational(cfg.RelationalStorePath, logger)
	if err != nil {
		logger.Error("failed to open relational store", "error", err)
		os.Exit(1)
	}

	vec, err := storage.OpenVector(ctx, storage.VectorConfig{
		Addr:               fmt.Sprintf("%s:%d", cfg.VectorHost, cfg.VectorPort),
		Dimensions:         cfg.EmbeddingDimensions,
		MemoriesCollection: cfg.VectorMemoriesCollection,
		EntitiesCollection: cfg.VectorEntitiesCollection,
	}, logger)
	if err != nil {
		logger.Error("failed to open vector store", "error", err)
		os.Exit(1)
	}

	store := storage.New(rel, vec, logger)
	embedder := embedding.New(cfg.EmbeddingDimensions, cfg.EmbeddingMaxLength, logger)

	llmClient := llmproc.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, time.Duration(cfg.LLMTimeoutSeconds)*time.Second)

	cachedLLM, err := llmproc.New(llmproc.Config{
		BaseURL:    cfg.LLMBaseURL,
		APIKey:     cfg.LLMAPIKey,
		Models:     append([]string{cfg.LLMModel}, cfg.LLMModelFallbacks...),
		Timeout:    time.Duration(cfg.LLMTimeoutSeconds) * time.Second,
		CacheTTL:   time.Duration(cfg.LLMCacheTTLSeconds) * time.Second,
		BadgerPath: "meetgraph-llmcache",
		MaxRetries: uint64(cfg.LLMMaxRetries),
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to start LLM gateway", "error", err)
		os.Exit(1)
	}
	defer cachedLLM.Close()

	entityResolver := resolver.New(store, embedder, llmClient, cfg.LLMModel, resolver.Config{
		CacheTTL:        time.Duration(cfg.EntityCacheTTLSeconds) * time.Second,
		VectorThreshold: cfg.EntityResolutionVectorThreshold,
		FuzzyThreshold:  cfg.EntityResolutionFuzzyThreshold,
		UseLLM:          cfg.EntityResolutionUseLLM,
		MaxRetries:      uint64(cfg.LLMMaxRetries),
		Logger:          logger,
	})
	defer entityResolver.Close()

	meetingExtractor := extractor.New(llmClient, extractor.Config{
		Model:      cfg.LLMModel,
		MaxRetries: uint64(cfg.LLMMaxRetries),
		Logger:     logger,
	})

	meetingProcessor := processor.New(processor.Config{
		Store:       store,
		Embedder:    embedder,
		Resolver:    entityResolver,
		Comparer:    cachedLLM,
		LLM:         llmClient,
		ReasonModel: cfg.LLMModel,
		MaxRetries:  uint64(cfg.LLMMaxRetries),
		Logger:      logger,
	})

	queryEngine := query.New(query.Config{
		Store:      store,
		Embedder:   embedder,
		LLM:        llmClient,
		Model:      cfg.LLMModel,
		MaxRetries: uint64(cfg.LLMMaxRetries),
		Logger:     logger,
	})

	fmt.Println("Commands: /ingest <path>  /ask <question>  /help  /exit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("meetgraph> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/exit" || line == "/quit":
			return
		case line == "/help":
			printHelp()
		case strings.HasPrefix(line, "/ingest "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/ingest "))
			ingest(ctx, path, meetingExtractor, meetingProcessor, logger)
		case strings.HasPrefix(line, "/ask "):
			question := strings.TrimSpace(strings.TrimPrefix(line, "/ask "))
			ask(ctx, question, queryEngine)
		default:
			ask(ctx, line, queryEngine)
		}
	}
}

func printHelp() {
	fmt.Println("\n/ingest <path>   ingest a transcript file as a new meeting")
	fmt.Println("/ask <question>  ask a natural-language question about tracked entities")
	fmt.Println("/exit            quit")
	fmt.Println("any other line is treated as a question\n")
}

func ingest(ctx context.Context, path string, ext *extractor.Extractor, proc *processor.Processor, logger *slog.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("could not read %s: %v\n\n", path, err)
		return
	}

	meetingID := uuid.NewString()
	extraction := ext.Extract(ctx, string(data), meetingID)

	title := extraction.Summary
	if title == "" {
		title = path
	}

	method := "llm"
	if m, ok := extraction.Metadata["extraction_method"].(string); ok && m != "" {
		method = m
	}
	summary, err := proc.ProcessMeeting(ctx, meetingID, title, time.Now().UTC(), string(data), extraction, method)
	if err != nil {
		logger.Error("failed to process meeting", "path", path, "error", err)
		fmt.Printf("ingestion failed: %v\n\n", err)
		return
	}

	fmt.Printf("ingested %s: %d entities, %d states, %d transitions, %d relationships\n\n",
		path, summary.EntitiesProcessed, summary.StatesCaptured, summary.TransitionsCreated, summary.RelationshipsSaved)
}

func ask(ctx context.Context, question string, engine *query.Engine) {
	result, err := engine.ProcessQuery(ctx, question)
	if err != nil {
		fmt.Printf("query failed: %v\n\n", err)
		return
	}

	fmt.Printf("\n%s\n", result.Answer)
	fmt.Printf("(intent: %s, confidence: %.0f%%)\n", result.Intent, result.Confidence*100)
	if len(result.FollowUps) > 0 {
		fmt.Println("You might also ask:")
		for _, f := range result.FollowUps {
			fmt.Printf("  - %s\n", f)
		}
	}
	fmt.Println()
}
