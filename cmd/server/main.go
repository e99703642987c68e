/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the financial request engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration
  2. Build the logger
  3. Pick the document store (memory by default, SQLite when a path is
     configured) and the matching sequences and posting log
  4. Wire services: documents, ledger poster, settlement
  5. Optionally seed a demo scenario
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to a config file (optional)
  -port    Overrides server.port
  -db      Overrides store.path; use ":memory:" for throwaway SQLite

CONFIGURATION:
  All settings are also reachable via FINREQ_* environment variables,
  e.g. FINREQ_SERVER_PORT=3000, FINREQ_LEDGER_LATENCY=0s.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the store
  4. Exit

EXAMPLES:
  # All state in memory, matching the source system
  ./server

  # Persistent store
  ./server -db="./data/finrequest.db"

  # Instant ledger postings for demos
  FINREQ_LEDGER_LATENCY=0s ./server

SEE ALSO:
  - config/config.go: Configuration schema and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Persistent store
*/
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/meridian/finrequest/api"
	"github.com/meridian/finrequest/config"
	"github.com/meridian/finrequest/document"
	docstore "github.com/meridian/finrequest/document/store"
	"github.com/meridian/finrequest/ledger"
	"github.com/meridian/finrequest/settlement"
	"github.com/meridian/finrequest/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "path to config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config; empty keeps state in memory)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}

	log, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Storage: in-memory by default, SQLite when a path is set. The
	// sequences and posting log follow the store so document numbers
	// and the duplicate-posting guard survive restarts together.
	var (
		store     document.Store
		docSeq    document.Sequence
		ledgerSeq ledger.Sequence
		plog      ledger.Log
	)
	if cfg.Store.Path != "" {
		db, err := sqlite.New(cfg.Store.Path)
		if err != nil {
			log.Fatal("failed to initialize database", zap.Error(err))
		}
		defer db.Close()
		store = db
		docSeq = db.DocSequence()
		ledgerSeq = db.LedgerSequence(ledger.SequenceSeed)
		plog = db.PostingLog()
		log.Info("using sqlite store", zap.String("path", cfg.Store.Path))
	} else {
		store = docstore.NewMemory()
		docSeq = document.NewMemorySequence()
		ledgerSeq = ledger.NewMemorySequence(ledger.SequenceSeed)
		plog = ledger.NewMemoryLog()
		log.Info("using in-memory store")
	}

	// Services
	docs := document.NewService(store, docSeq)
	poster := ledger.NewPoster(ledgerSeq, plog, ledger.WithLatency(cfg.Ledger.Latency))
	settle := settlement.NewService(docs, poster)

	// Handler and router
	handler := api.NewHandler(docs, settle, poster, log)
	if cfg.Demo.Scenario != "" {
		if err := handler.SeedScenario(context.Background(), cfg.Demo.Scenario); err != nil {
			log.Warn("failed to seed demo scenario",
				zap.String("scenario", cfg.Demo.Scenario), zap.Error(err))
		} else {
			log.Info("seeded demo scenario", zap.String("scenario", cfg.Demo.Scenario))
		}
	}
	router := api.NewRouter(handler, api.RouterConfig{AllowedOrigins: cfg.CORS.AllowedOrigins})

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
