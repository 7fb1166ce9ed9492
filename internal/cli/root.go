// Package cli implements the fittrack command line client.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"example.com/fittrack/internal/config"
	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/logger"
	"example.com/fittrack/internal/persistence/backend"
)

// session holds what every subcommand needs once the backend is open.
type session struct {
	cfg        config.Config
	logger     *slog.Logger
	backend    *backend.Backend
	activities *domain.ActivityService
	profiles   *domain.ProfileService
	userID     string
}

type globalFlags struct {
	backend  string
	dbPath   string
	userID   string
	timezone string
	logLevel string
}

// NewRootCommand builds the fittrack command tree.
func NewRootCommand() *cobra.Command {
	var (
		flags globalFlags
		s     = &session{}
	)

	root := &cobra.Command{
		Use:           "fittrack",
		Short:         "fittrack records daily steps, calories and exercise from your terminal",
		Long:          "fittrack keeps one activity record per day with steps, derived calories and distance, and manually logged exercise. Data lives in a local SQLite file or on a fittrack server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			applyFlags(cmd, &cfg, flags)
			if err := cfg.Validate(); err != nil {
				return err
			}

			log := logger.New(logger.Config{Level: cfg.LogLevel, Format: "text", Output: cmd.ErrOrStderr()})
			b, err := backend.Open(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			userID, err := b.ResolveUser(cmd.Context(), cfg)
			if err != nil {
				_ = b.Close()
				return err
			}

			*s = session{
				cfg:        cfg,
				logger:     log,
				backend:    b,
				activities: b.ActivityService(cfg, log),
				profiles:   domain.NewProfileService(b.Profiles, log),
				userID:     userID,
			}
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if s.backend == nil {
				return nil
			}
			return s.backend.Close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.backend, "backend", "", "Storage backend: sqlite, remote, postgres or memory (default from FITTRACK_BACKEND)")
	pf.StringVar(&flags.dbPath, "db", "", "Path to the SQLite database")
	pf.StringVar(&flags.userID, "user", "", "User id for local backends")
	pf.StringVar(&flags.timezone, "timezone", "", "IANA timezone that decides the current day")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	root.AddCommand(
		newTodayCommand(s),
		newStepsCommand(s),
		newEntryCommand(s),
		newHistoryCommand(s),
		newExportCommand(s),
		newWeeklyCommand(s),
		newResetCommand(s),
		newTrackCommand(s),
		newProfileCommand(s),
	)
	return root
}

func applyFlags(cmd *cobra.Command, cfg *config.Config, flags globalFlags) {
	pf := cmd.Flags()
	if pf.Changed("backend") {
		cfg.Backend = flags.backend
	}
	if pf.Changed("db") {
		cfg.SQLitePath = flags.dbPath
	}
	if pf.Changed("user") {
		cfg.UserID = flags.userID
	}
	if pf.Changed("timezone") {
		cfg.TimeZone = flags.timezone
	}
	switch {
	case pf.Changed("log-level"):
		cfg.LogLevel = flags.logLevel
	case os.Getenv("LOG_LEVEL") == "":
		cfg.LogLevel = "warn"
	}
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(1)
	}
}
