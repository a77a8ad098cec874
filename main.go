package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/barsense-data/barbell.report/internal/api"
	"github.com/barsense-data/barbell.report/internal/config"
	"github.com/barsense-data/barbell.report/internal/db"
	"github.com/barsense-data/barbell.report/internal/units"
)

var (
	listen        = flag.String("listen", ":8080", "Listen address")
	dbFile        = flag.String("db", "barbell.db", "Path to the SQLite database file")
	migrationsDir = flag.String("migrations", "db/migrations", "Path to the migrations directory")
	tuningFile    = flag.String("tuning", "", "Path to a tuning config JSON file (optional)")
	speedUnits    = flag.String("units", "mps", "Default velocity units for API responses (mps, mph, kmph)")
	noMigrate     = flag.Bool("no-migrate", false, "Skip database migrations (migrations run by default)")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: barbell-report [flags] [migrate up|down|status|force <version>]\n\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if !units.IsValidSpeed(*speedUnits) {
		log.Fatalf("Invalid units %q, want one of %s", *speedUnits, units.GetValidSpeedUnitsString())
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	// Explicit migrate subcommand runs and exits.
	if args := flag.Args(); len(args) > 0 && args[0] == "migrate" {
		if err := runMigrateCommand(database, args[1:]); err != nil {
			log.Fatalf("Migration command failed: %v", err)
		}
		return
	}

	if !*noMigrate {
		if err := database.MigrateUp(*migrationsDir); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
	}

	cfg := config.EmptyTuningConfig()
	if *tuningFile != "" {
		cfg, err = config.LoadTuningConfig(*tuningFile)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
		log.Printf("Loaded tuning config from %s", *tuningFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()

	// Admin debugging routes (tailsql console and backups).
	if err := database.AttachAdminRoutes(mux); err != nil {
		log.Fatalf("Failed to attach admin routes: %v", err)
	}

	apiServer := api.NewServer(database, cfg, *speedUnits)
	apiMux := apiServer.ServeMux()
	mux.Handle("/api/", apiMux)
	mux.Handle("/charts/", apiMux)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "barbell.report analysis server")
	})

	server := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(mux),
	}

	go func() {
		log.Printf("Listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}

func runMigrateCommand(database *db.DB, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("migrate requires a subcommand: up, down, status, force")
	}
	switch args[0] {
	case "up":
		if err := database.MigrateUp(*migrationsDir); err != nil {
			return err
		}
		log.Printf("Migrations applied")
	case "down":
		if err := database.MigrateDown(*migrationsDir); err != nil {
			return err
		}
		log.Printf("Rolled back one migration")
	case "status":
		version, dirty, err := database.MigrateVersion(*migrationsDir)
		if err != nil {
			return err
		}
		latest, err := db.GetLatestMigrationVersion(*migrationsDir)
		if err != nil {
			return err
		}
		log.Printf("Database version: %d (dirty=%v), latest available: %d", version, dirty, latest)
	case "force":
		if len(args) < 2 {
			return fmt.Errorf("migrate force requires a version")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := database.MigrateForce(*migrationsDir, version); err != nil {
			return err
		}
		log.Printf("Forced database to version %d", version)
	default:
		return fmt.Errorf("unknown migrate subcommand %q", args[0])
	}
	return nil
}
