package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/h2adev/reelforge/internal/api"
	"github.com/h2adev/reelforge/internal/assembly"
	"github.com/h2adev/reelforge/internal/assetstore"
	"github.com/h2adev/reelforge/internal/config"
	"github.com/h2adev/reelforge/internal/ffmpeg"
	"github.com/h2adev/reelforge/internal/hooks"
	"github.com/h2adev/reelforge/internal/project"
	"github.com/h2adev/reelforge/internal/provider"
	"github.com/h2adev/reelforge/internal/queue"
	"github.com/h2adev/reelforge/internal/transcribe"
	"github.com/h2adev/reelforge/internal/uploadcache"
)

func main() {
	log.Println("Starting ReelForge API...")

	// Load configuration — fails hard on a missing provider key or media tool
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Storage root: %s", cfg.StorageDir)
	log.Printf("Media tool: %s (probe: %s)", cfg.MediaToolPath, cfg.ProbeToolPath)

	// Construct the core services once, at the composition root. Nothing
	// below reaches for process-wide state.
	prov := provider.New(cfg.ProviderBaseURL, cfg.ProviderAPIKey)
	projects := project.New()
	assets := assetstore.New(cfg.StorageDir)
	uploads := uploadcache.New(0, 0)
	tool := ffmpeg.New(cfg.MediaToolPath, cfg.ProbeToolPath)
	assembler := assembly.New(cfg.StorageDir, tool)
	q := queue.New(prov)

	// Post-completion hooks: the queue never imports the project store or
	// asset storage — they are closed over here instead.
	h := &hooks.Hooks{Projects: projects, Assets: assets}
	if cfg.OpenAIKey != "" {
		h.Transcriber = transcribe.New(cfg.OpenAIKey)
		log.Println("Subtitle enrichment enabled (Whisper transcription)")
	}
	hooks.Register(q, h)

	handler := api.NewHandler(projects, q, assets, prov, uploads, assembler)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set — API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// The queue is in-process only: in-flight jobs are discarded with it.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
