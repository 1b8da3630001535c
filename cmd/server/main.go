/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the attendance engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Load work policies (directory of JSON files, optional)
  4. Create API handler with dependencies
  5. Start the background exception scanner
  6. Start server with graceful shutdown

CONFIGURATION:
  Flags override environment variables. Environment variables may come
  from a .env file in the working directory.

  -port / PORT          HTTP server port (default: 8080)
  -db / DATABASE_PATH   SQLite database path (default: attendance.db)
                        Use ":memory:" for in-memory database
  -policies / POLICY_DIR  Directory of policy JSON files (optional;
                          without it the statutory defaults apply and
                          settlement fails on missing hourly rates)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the exception scanner
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/attendance.db"

  # Run with policies
  ./server -policies="./config/policies"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/policy"
	"github.com/warp/attendance-engine/settlement"
	"github.com/warp/attendance-engine/store/sqlite"
)

func main() {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	// Flags (defaults come from the environment)
	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DATABASE_PATH", "attendance.db"), "SQLite database path")
	policyDir := flag.String("policies", envStr("POLICY_DIR", ""), "directory of policy JSON files")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Policy provider: JSON files if configured, statutory defaults
	// otherwise. The cache refreshes hourly and on POST /api/policies/reload.
	inner, err := loadPolicies(*policyDir)
	if err != nil {
		log.Fatalf("Failed to load policies: %v", err)
	}
	policies := policy.NewCachingProvider(inner, time.Hour)

	// Wire the engine. Ingestion resolves its calculator knobs and
	// source priority from the policy in effect for each punch's date.
	ingestor := attendance.NewIngestor(store, store, store, store)
	ingestor.Rules = policy.Rules(policies)
	aggregator := settlement.NewAggregator(store, store, store, policies)
	handler := api.NewHandler(ingestor, store, store, store, aggregator, store, policies)

	// Background exception scanner
	scanner := api.NewExceptionScanner(store, store)
	scanner.Start()
	defer scanner.Stop()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// loadPolicies parses every *.json in dir into a WorkPolicy. An empty
// dir name yields the statutory default policy only.
func loadPolicies(dir string) (policy.Provider, error) {
	if dir == "" {
		return policy.NewStaticProvider(policy.Default()), nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}

	factory := policy.NewFactory()
	policies := []*policy.WorkPolicy{policy.Default()}
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read policy %s: %w", path, err)
		}
		p, err := factory.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse policy %s: %w", path, err)
		}
		policies = append(policies, p)
		log.Printf("Loaded policy %s (%s to %s)", p.ID, p.EffectiveFrom, p.EffectiveTo)
	}
	return policy.NewStaticProvider(policies...), nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
