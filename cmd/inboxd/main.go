// Package main is the entry point for the inboxd daemon.
// inboxd keeps the local inbox database in sync for one recruiter:
// it subscribes to the change feed, polls on the adaptive schedule,
// and logs inbound mail as it lands.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hirelight/hirelight/internal/activity"
	"github.com/hirelight/hirelight/internal/backend"
	"github.com/hirelight/hirelight/internal/config"
	"github.com/hirelight/hirelight/internal/db"
	"github.com/hirelight/hirelight/internal/inbox"
	"github.com/hirelight/hirelight/internal/logging"
	"github.com/hirelight/hirelight/internal/models"
	"github.com/hirelight/hirelight/internal/push/ws"
	"github.com/hirelight/hirelight/internal/scheduler"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configFile := flag.String("config", "", "config file (default is $HOME/.config/hirelight/config.yaml)")
	logLevel := flag.String("log-level", "", "override logging level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "override logging format (json, console)")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}

	logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		EnableCaller: cfg.Logging.EnableCaller,
	})
	logger := logging.Component("inboxd")

	if err := cfg.EnsureDirectories(); err != nil {
		logger.Warn().Err(err).Msg("failed to create directories")
	}
	if cfg.Identity.UserID == "" {
		logger.Error().Msg("no user configured; set identity.user_id")
		os.Exit(1)
	}

	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Str("built", date).
		Msg("inboxd starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle, err := db.Open(ctx, cfg.DatabasePath(), cfg.Database.BusyTimeoutMs)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open database")
		os.Exit(1)
	}
	defer handle.Close()

	monitor := activity.NewMonitor(cfg.Scheduler.IdleWindow)
	defer monitor.Close()

	transport := ws.NewTransport(ws.Config{
		URL:               cfg.Push.URL,
		Token:             cfg.Push.Token,
		ReconnectBase:     cfg.Push.ReconnectBase,
		ReconnectMax:      cfg.Push.ReconnectMax,
		HeartbeatInterval: cfg.Push.HeartbeatInterval,
	})

	identity := backend.StaticIdentity{ID: cfg.Identity.UserID, Addr: cfg.Identity.Address}
	controller := inbox.New(db.NewStore(handle), transport, identity, monitor,
		inbox.WithSchedulerConfig(scheduler.Config{
			FastInterval: cfg.Scheduler.FastInterval,
			SlowInterval: cfg.Scheduler.SlowInterval,
		}),
		inbox.WithMessageNotifier(func(msg models.Message) {
			logger.Info().
				Str("thread_id", msg.ThreadID).
				Str("sender", logging.MaskAddress(msg.Sender)).
				Msg("inbound message")
		}),
	)

	// Headless: the slow background cadence plus the push feed keeps the
	// local database fresh.
	monitor.SetVisible(false)
	if err := controller.Acquire(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to start sync")
		os.Exit(1)
	}
	defer controller.Release()

	logger.Info().Str("user_id", cfg.Identity.UserID).Msg("inboxd running")
	<-ctx.Done()
	logger.Info().Msg("inboxd shutting down")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.LoadDefault()
}
