package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskbridge/server/internal/mcp"
	"taskbridge/server/internal/middleware"
	"taskbridge/server/internal/modules"
	"taskbridge/server/internal/modules/asana"
	"taskbridge/server/internal/modules/utility"
	"taskbridge/server/internal/observability"
	"taskbridge/server/internal/secrets"
)

func main() {
	// Initialize observability (Loki)
	observability.Init()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8089"
	}

	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = "local"
	}

	// Select the secret backend (env by default, postgres via SECRET_STORE)
	store, err := secrets.NewStoreFromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize secret store: %v", err)
	}

	// Register modules
	modules.RegisterModule(utility.New())
	modules.RegisterModule(asana.New(store))
	log.Printf("Registered modules: %v", modules.ListModules())

	authorizer := middleware.NewAuthorizerFromEnv()

	// Create router (Go 1.22+ method-aware patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Instance-ID", instanceID)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","instance":"%s"}`, instanceID)
	})

	// MCP endpoint with recovery + auth + rate limit + transport middleware
	rateLimiter := middleware.NewRateLimiter(10)
	mcpHandler := mcp.NewHandler()
	mux.Handle("/mcp", middleware.Recovery(authorizer.Authorize(rateLimiter.Middleware(middleware.Transport(mcpHandler)))))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: mux,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting MCP server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("Received signal %s, shutting down gracefully...", sig)

	// Give in-flight requests up to 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Printf("Server stopped")
}
