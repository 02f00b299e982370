/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the economy engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load TOML config if given
  2. Initialize SQLite store
  3. Wire the ledger, power-up service, and submission workflow
  4. Configure HTTP router and start the balance auditor
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to TOML config file (optional)
  -port    HTTP server port, overrides config (default: 8080)
  -db      SQLite database path, overrides config
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the balance auditor
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/economy.db"

  # Run from a config file
  ./server -config=./economy.toml

  # Run on a different port
  ./server -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: TOML configuration
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
	"syscall"
	"time"

	"github.com/gamilit/economy-engine/api"
	"github.com/gamilit/economy-engine/config"
	"github.com/gamilit/economy-engine/economy"
	"github.com/gamilit/economy-engine/grading"
	"github.com/gamilit/economy-engine/powerup"
	"github.com/gamilit/economy-engine/store/sqlite"
	"github.com/gamilit/economy-engine/submission"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "Path to TOML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire services
	ledger := economy.NewLedger(store)
	powerups := powerup.NewService(store, ledger)
	oracle := grading.NewLocalOracle(store)
	workflow := submission.NewWorkflow(store, store, ledger, store, oracle)

	// Initialize handler and router
	handler := api.NewHandler(store, ledger, powerups, workflow, store)
	router := api.NewRouter(handler, cfg.CORS.AllowedOrigins)

	// Background balance auditor
	auditor := api.NewBalanceAuditor(ledger, store)
	auditor.Enabled = cfg.Audit.Enabled
	auditor.SweepInterval = time.Duration(cfg.Audit.IntervalMinutes) * time.Minute
	auditor.Start()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", cfg.Server.Port)
		log.Printf("API available at http://localhost:%d/api", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	auditor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
