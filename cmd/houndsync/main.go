// Houndsync is a daemon that mirrors a family's Hound pet-care reminders
// locally, evaluates their recurrence rules, and fires due alarms while
// keeping the server's state reconciled.
//
// Usage:
//
//	houndsync daemon [--config <path>]     # start polling + alarm scheduler
//	houndsync sync-once [--config <path>]  # single reconcile pass then exit
//	houndsync status                       # show config & cache state
//	houndsync version                      # print version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/houndapp/houndsync/internal/config"
	"github.com/houndapp/houndsync/internal/hound"
	"github.com/houndapp/houndsync/internal/reminder"
	"github.com/houndapp/houndsync/internal/scheduler"
	"github.com/houndapp/houndsync/internal/state"
	syncp "github.com/houndapp/houndsync/internal/sync"
	"github.com/houndapp/houndsync/internal/telemetry"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// run dispatches to the appropriate subcommand.
func run() error {
	if len(os.Args) < 2 {
		return printUsage()
	}

	switch cmd := os.Args[1]; cmd {
	case "daemon":
		return runSync(os.Args[2:], true)
	case "sync-once":
		return runSync(os.Args[2:], false)
	case "status":
		return runStatus()
	case "version":
		fmt.Println("houndsync", version)
		return nil
	default:
		return fmt.Errorf("unknown command %q, run 'houndsync' for usage", cmd)
	}
}

// printUsage shows help and hints at the config path when none exists yet.
func printUsage() error {
	cfgPath, _ := config.DefaultPath()
	_, cfgErr := os.Stat(cfgPath)

	fmt.Fprintln(os.Stderr, "Houndsync: local alarm scheduling for Hound pet-care reminders")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  houndsync daemon [--config ...]      Run as continuous daemon")
	fmt.Fprintln(os.Stderr, "  houndsync sync-once [--config ...]   Single sync pass then exit")
	fmt.Fprintln(os.Stderr, "  houndsync status                     Show config & cache state")
	fmt.Fprintln(os.Stderr, "  houndsync version                    Print version")
	fmt.Fprintln(os.Stderr, "")

	if cfgErr != nil {
		fmt.Fprintf(os.Stderr, "No config file found. Create one at %s to get started.\n", cfgPath)
	}

	os.Exit(1)
	return nil // unreachable
}

// --- Subcommands -------------------------------------------------------------

// runSync handles both "daemon" and "sync-once" subcommands.
func runSync(args []string, daemon bool) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return startSync(*cfgPath, *verbose, daemon)
}

// runStatus prints the current configuration and cache state.
func runStatus() error {
	cfgPath, _ := config.DefaultPath()
	dbPath, _ := state.DefaultDBPath()

	fmt.Println("Houndsync Status")
	fmt.Println("────────────────")

	if _, err := os.Stat(cfgPath); err == nil {
		if cfg, loadErr := config.Load(cfgPath); loadErr == nil {
			fmt.Printf("  Config:    %s ✓\n", cfgPath)
			fmt.Printf("  Server:    %s\n", cfg.ServerURL)
			fmt.Printf("  Dogs:      %d configured\n", len(cfg.DogIDs))
			fmt.Printf("  Poll:      %s\n", cfg.PollInterval)
			if cfg.DBPath != "" {
				dbPath = cfg.DBPath
			}
		} else {
			fmt.Printf("  Config:    %s (invalid: %v)\n", cfgPath, loadErr)
		}
	} else {
		fmt.Printf("  Config:    not found (%s)\n", cfgPath)
	}

	if info, err := os.Stat(dbPath); err == nil {
		fmt.Printf("  Cache DB:  %s (%s)\n", dbPath, humanSize(info.Size()))
		if st, openErr := state.Open(dbPath); openErr == nil {
			defer func() { _ = st.Close() }()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if ids, idsErr := st.DogIDs(ctx); idsErr == nil {
				fmt.Printf("  Cached:    reminders for %d dog(s)\n", len(ids))
				for _, id := range ids {
					last, _ := st.LastSync(ctx, id)
					if last.IsZero() {
						fmt.Printf("    dog %d: never synced\n", id)
					} else {
						fmt.Printf("    dog %d: last synced %s\n", id, last.Format(time.RFC3339))
					}
				}
			}
		}
	} else {
		fmt.Printf("  Cache DB:  not found\n")
	}

	return nil
}

// --- Sync core ---------------------------------------------------------------

// startSync is the shared implementation for daemon and sync-once modes.
func startSync(cfgPath string, verbose, daemon bool) error {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config from %q: %w", cfgPath, err)
	}
	logger.Info("config loaded",
		"server_url", cfg.ServerURL,
		"poll_interval", cfg.PollInterval,
		"dogs", len(cfg.DogIDs),
	)

	// --- Telemetry (optional) ------------------------------------------------

	if cfg.Telemetry != nil {
		telCfg := telemetry.Config{
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			Insecure:     cfg.Telemetry.Insecure,
			ServiceName:  cfg.Telemetry.ServiceName,
			Headers:      cfg.Telemetry.Headers,
		}
		shutdownTel, err := telemetry.Setup(context.Background(), telCfg)
		if err != nil {
			logger.Error("telemetry setup failed, continuing without telemetry", "error", err)
		} else {
			logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.OTLPEndpoint)
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTel(flushCtx); err != nil {
					logger.Error("telemetry shutdown error", "error", err)
				}
			}()
		}
	}

	// --- Cache DB ------------------------------------------------------------

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath, err = state.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolving cache DB path: %w", err)
		}
	}
	store, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening cache DB at %q: %w", dbPath, err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Error("closing cache DB", "error", closeErr)
		}
	}()
	logger.Info("cache DB opened", "path", dbPath)

	// --- Server client & connectivity check ----------------------------------

	client := hound.NewClient(cfg.ServerURL, cfg.APIToken, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	logger.Info("pinging Hound server…", "url", cfg.ServerURL)
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("connecting to Hound server at %q: %w\n\nCheck server_url and api_token in your config file", cfg.ServerURL, err)
	}
	logger.Info("Hound server reachable")

	// --- Single pass mode ----------------------------------------------------

	if !daemon {
		engine := syncp.NewEngine(client, store, noopRescheduler{}, cfg.DogIDs, cfg.PollInterval, logger)
		logger.Info("running single sync pass")
		stats, err := engine.RunOnce(ctx)
		logger.Info("sync complete",
			"unchanged", stats.Unchanged,
			"created", stats.Created,
			"updated", stats.Updated,
			"deleted", stats.Deleted,
			"pushed", stats.Pushed,
			"errors", stats.Errors,
		)
		return err
	}

	// --- Daemon mode: scheduler + engine -------------------------------------

	var engine *syncp.Engine
	alarm := func(dogID int64, r *reminder.Reminder) {
		logger.Info("alarm", "dogID", dogID, "reminderID", r.ID, "action", r.DisplayName())
		go func() {
			ackCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := engine.Acknowledge(ackCtx, r, time.Now()); err != nil {
				logger.Error("acknowledging fired reminder", "reminderID", r.ID, "error", err)
			}
		}()
	}
	sched := scheduler.New(alarm, logger)
	engine = syncp.NewEngine(client, store, sched, cfg.DogIDs, cfg.PollInterval, logger)

	logger.Info("daemon starting", "poll_interval", cfg.PollInterval)

	errCh := make(chan error, 2)
	go func() { errCh <- sched.Run(ctx) }()
	go func() { errCh <- engine.Run(ctx) }()

	err = <-errCh
	stop()
	<-errCh
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("daemon: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// noopRescheduler satisfies [syncp.Rescheduler] for sync-once mode where no
// alarm loop runs.
type noopRescheduler struct{}

func (noopRescheduler) Replace(int64, []*reminder.Reminder) {}
func (noopRescheduler) Update(int64, *reminder.Reminder)    {}
func (noopRescheduler) Remove(int64, int64)                 {}

// humanSize returns a human-readable file size string.
func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
