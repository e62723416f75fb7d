package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hirelight/hirelight/internal/backend"
	"github.com/hirelight/hirelight/internal/cache"
	"github.com/hirelight/hirelight/internal/config"
	"github.com/hirelight/hirelight/internal/db"
	"github.com/hirelight/hirelight/internal/engine"
	"github.com/hirelight/hirelight/internal/logging"
	"github.com/hirelight/hirelight/internal/models"
)

// runtime bundles what every command needs: the loaded config, the open
// database, and the authenticated identity.
type runtime struct {
	config   *config.Config
	db       *db.DB
	store    *db.Store
	identity backend.StaticIdentity
}

func (r *runtime) close() {
	if r.db != nil {
		_ = r.db.Close()
	}
}

// ensureRuntime loads configuration, initializes logging, and opens the
// local database.
func ensureRuntime(cmd *cobra.Command) (*runtime, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, Exitf(ExitCodeFailure, "load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, Exitf(ExitCodeFailure, "prepare directories: %v", err)
	}

	logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		EnableCaller: cfg.Logging.EnableCaller,
	})

	handle, err := db.Open(context.Background(), cfg.DatabasePath(), cfg.Database.BusyTimeoutMs)
	if err != nil {
		return nil, Exitf(ExitCodeFailure, "open database: %v", err)
	}

	return &runtime{
		config: cfg,
		db:     handle,
		store:  db.NewStore(handle),
		identity: backend.StaticIdentity{
			ID:   cfg.Identity.UserID,
			Addr: cfg.Identity.Address,
		},
	}, nil
}

// loadEngine builds a mutation engine over a cache primed from the
// local store, so one-shot commands run the same optimistic pipeline
// the long-lived client does.
func (r *runtime) loadEngine(cmd *cobra.Command) (*engine.Engine, error) {
	userID := r.identity.UserID()
	threads, err := r.store.ListThreads(cmd.Context(), userID, models.FilterAll)
	if err != nil {
		return nil, Exitf(ExitCodeFailure, "list threads: %v", err)
	}
	messages, err := r.store.ListMessages(cmd.Context(), userID)
	if err != nil {
		return nil, Exitf(ExitCodeFailure, "list messages: %v", err)
	}

	primed := cache.New(userID)
	primed.Update(func(tx *cache.Tx) {
		tx.UpsertThreads(threads)
		tx.UpsertMessages(messages)
	})

	toast := func(t engine.Toast) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", t.Level, t.Text)
	}
	return engine.New(primed, r.store, r.identity, engine.WithToastFunc(toast)), nil
}

// requireUser rejects commands that need an authenticated identity.
func (r *runtime) requireUser() error {
	if r.identity.UserID() == "" {
		return Exitf(ExitCodeFailure, "no user configured; set identity.user_id in the config file or HIRELIGHT_IDENTITY_USER_ID")
	}
	return nil
}
