package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oho/chunking-daemon/internal/chunkers"
	"github.com/oho/chunking-daemon/internal/config"
	"github.com/oho/chunking-daemon/internal/job"
	"github.com/oho/chunking-daemon/internal/profile"
	"github.com/oho/chunking-daemon/internal/router"
	"github.com/oho/chunking-daemon/internal/server"
	"github.com/oho/chunking-daemon/internal/sink"
	"github.com/oho/chunking-daemon/internal/tokenizer"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	slog.Info("Starting chunking daemon...")

	cfg := config.Load()
	slog.Info("Configuration loaded", "port", cfg.Port, "chunk_size", cfg.ChunkSize, "max_concurrent_jobs", cfg.MaxConcurrentJobs)

	extraProfiles, err := cfg.LoadProfiles()
	if err != nil {
		slog.Error("Failed to load profiles file", "error", err)
		os.Exit(1)
	}
	profiles, err := profile.NewStore(extraProfiles, cfg.ActiveProfile)
	if err != nil {
		slog.Error("Failed to initialize profile store", "error", err)
		os.Exit(1)
	}
	slog.Info("Profile store ready", "active", profiles.Active().Name)

	tok := tokenizer.Shared()

	recursive := chunkers.NewRecursiveChunker(tok)
	rtr := &router.Registry{
		Token:     chunkers.NewTokenChunker(tok),
		Sentence:  chunkers.NewSentenceChunker(tok),
		Recursive: recursive,
		Code:      chunkers.NewCodeChunker(tok, recursive),
		Document:  chunkers.NewDocumentChunker(tok, recursive),
		Chat:      chunkers.NewChatChunker(tok),
		Ticketing: chunkers.NewTicketingChunker(tok, recursive),
		Table:     chunkers.NewTableChunker(tok),
		Agentic:   chunkers.NewAgenticChunker(tok),
		WebHTML:   chunkers.NewHTMLChunker(tok, recursive),
	}

	sinkClient := sink.New(cfg.EmbeddingServiceURL, time.Duration(cfg.SinkTimeoutSecs)*time.Second)
	if sinkClient.Enabled() {
		slog.Info("Sink configured", "url", cfg.EmbeddingServiceURL)
	} else {
		slog.Warn("No EMBEDDING_SERVICE_URL set; chunks will be produced but not forwarded")
	}

	registry := job.NewRegistry()
	processor := job.NewProcessor(registry, rtr, sinkClient, cfg.MaxConcurrentJobs)

	r := server.NewRouter()
	r.Get("/health", server.HealthHandler())
	r.Mount("/chunk/jobs", server.JobsRouter(processor, registry, profiles))
	r.Mount("/chunk/profiles", server.ProfilesRouter(profiles))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 60))
	fmt.Printf("  Chunking Daemon\n")
	fmt.Printf("  http://localhost%s\n", addr)
	fmt.Printf("  Active profile: %s\n", profiles.Active().Name)
	fmt.Printf("%s\n\n", strings.Repeat("=", 60))

	slog.Info("Daemon ready", "addr", addr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)

	slog.Info("Daemon stopped")
}
