// Package cli wires the orbit commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/orbit/internal/config"
	"github.com/example/orbit/internal/database"
	"github.com/example/orbit/internal/logger"
	"github.com/example/orbit/internal/session"
	"github.com/example/orbit/internal/spaced_repetition"
)

// NewRootCommand builds the orbit command tree
func NewRootCommand() *cobra.Command {
	var dbPath string

	root := &cobra.Command{
		Use:   "orbit",
		Short: "Orbit - spaced repetition review",
		Long: `Orbit schedules question and answer cards with spaced repetition.

Cards are imported from spreadsheets, CSV or Q./A. markdown and reviewed from
the command line or over Telegram.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides DB_PATH)")

	open := func() (*app, error) {
		return openApp(dbPath)
	}
	root.AddCommand(newBotCommand(open))
	root.AddCommand(newImportCommand(open))
	root.AddCommand(newQueueCommand(open))
	root.AddCommand(newReviewCommand(open))
	root.AddCommand(newCardsCommand(open))
	root.AddCommand(newShowCommand(open))
	root.AddCommand(newDeleteCommand(open))
	root.AddCommand(newEditCommand(open))
	return root
}

// app holds everything a command needs
type app struct {
	config  *config.Config
	log     *logger.Logger
	store   *database.Store
	manager *session.Manager
}

func openApp(dbPath string) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Type = "sqlite"
		cfg.Database.Path = dbPath
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.Connect(cfg.Database.Driver(), cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	store := database.NewStore(db)
	scheduler := spaced_repetition.New(cfg.Scheduler)

	return &app{
		config:  cfg,
		log:     log,
		store:   store,
		manager: session.NewManager(store, scheduler, cfg.QueueSize, log),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("failed to close database", "error", err)
	}
	a.log.Sync()
}
