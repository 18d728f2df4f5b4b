/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave accounting engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Wire ledger and service
  4. Configure HTTP router
  5. Start server with graceful shutdown

CONFIGURATION (flag overrides env):
  -port / PORT              HTTP server port (default: 8080)
  -db / DATABASE_PATH       SQLite database path (default: leave.db)
                            Use ":memory:" for in-memory database
  -log-level / LOG_LEVEL    logrus level (default: info)
  -seed / SEED              Seed demo personnel on startup

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/leave.db"

  # Run with in-memory database and demo data
  ./server -db=":memory:" -seed

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/hrcore/leave-engine/api"
	"github.com/hrcore/leave-engine/leave"
	"github.com/hrcore/leave-engine/store/sqlite"
)

func main() {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DATABASE_PATH", "leave.db"), "SQLite database path")
	logLevel := flag.String("log-level", envStr("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	seed := flag.Bool("seed", envBool("SEED"), "seed demo personnel on startup")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(*logLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.WithField("log_level", *logLevel).Warn("unknown log level, using info")
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	// Wire the domain
	personnel := store.Personnel()
	ledger := leave.NewLedger(personnel, store.Entries())
	service := leave.NewService(personnel, store.Absences(), ledger, log)

	if *seed {
		if err := seedDemo(context.Background(), service); err != nil {
			log.WithError(err).Fatal("failed to seed demo data")
		}
		log.Info("demo personnel seeded")
	}

	// Router and server
	handler := api.NewHandler(service, log)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"port": *port, "db": *dbPath}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
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
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server stopped")
}

// seedDemo creates a handful of personnel with the default annual allowance.
func seedDemo(ctx context.Context, svc *leave.Service) error {
	demo := []leave.Personnel{
		{FirstName: "Amina", LastName: "Bensalem", EmploymentType: "FULL_TIME", LeaveBalance: leave.Days(30), Active: true},
		{FirstName: "Karim", LastName: "Haddad", EmploymentType: "FULL_TIME", LeaveBalance: leave.Days(30), Active: true},
		{FirstName: "Lina", LastName: "Mansouri", EmploymentType: "PART_TIME", LeaveBalance: leave.Days(15), Active: true},
	}
	for _, p := range demo {
		if _, err := svc.CreatePersonnel(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && b
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
