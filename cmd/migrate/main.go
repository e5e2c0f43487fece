package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"github.com/storyvoice/backend/internal/infrastructure/config"
	"github.com/storyvoice/backend/internal/infrastructure/logger"
	"github.com/storyvoice/backend/internal/infrastructure/migration"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

// options are the persistent flags shared by every subcommand
type options struct {
	path     string
	logLevel string
	log      *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the storyvoice database schema",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			log, err := logger.New(logger.Config{Level: opts.logLevel, Format: "console", Output: "stdout"})
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			opts.log = log
			opts.path, err = resolveMigrationsPath(opts.path)
			return err
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if opts.log != nil {
				logger.Sync(opts.log)
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.path, "path", "", "Path to migrations directory (default: ./migrations)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newUpCmd(opts),
		newDownCmd(opts),
		newStepsCmd(opts),
		newGotoCmd(opts),
		newVersionCmd(opts),
		newForceCmd(opts),
		newCreateCmd(opts),
		newListCmd(opts),
	)
	return root
}

func newUpCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withMigrator(opts, func(m *migration.Migrator) error { return m.Up() })
		},
	}
}

func newDownCmd(opts *options) *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if !confirm {
				return fmt.Errorf("rolling back every migration drops all voice data; pass --confirm")
			}
			return withMigrator(opts, func(m *migration.Migrator) error { return m.Down() })
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Confirm a full rollback")
	return cmd
}

func newStepsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "steps <n>",
		Short: "Apply n migrations, or roll back when n is negative",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid step count %q", args[0])
			}
			return withMigrator(opts, func(m *migration.Migrator) error { return m.Steps(n) })
		},
	}
}

func newGotoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "goto <version>",
		Short: "Migrate up or down to a specific version",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			version, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return withMigrator(opts, func(m *migration.Migrator) error { return m.GoTo(uint(version)) })
		},
	}
}

func newVersionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withMigrator(opts, func(m *migration.Migrator) error {
				status, err := m.Status()
				if err != nil {
					return err
				}
				if status.Version == 0 {
					opts.log.Info("No migrations applied")
					return nil
				}
				opts.log.Info("Current migration version",
					zap.Uint("version", status.Version),
					zap.Bool("dirty", status.Dirty))
				return nil
			})
		},
	}
}

func newForceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Record a version without running it, clearing the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return withMigrator(opts, func(m *migration.Migrator) error { return m.Force(version) })
		},
	}
}

func newCreateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty up/down migration pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			mf, err := migration.CreateMigration(opts.path, args[0], time.Now())
			if err != nil {
				return err
			}
			opts.log.Info("Migration created",
				zap.String("version", mf.Version),
				zap.String("up_file", mf.UpPath),
				zap.String("down_file", mf.DownPath))
			return nil
		},
	}
}

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := migration.ListMigrations(opts.path)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				opts.log.Info("No migrations found", zap.String("path", opts.path))
				return nil
			}
			for _, name := range names {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// withMigrator opens the configured database, runs fn and releases everything
func withMigrator(opts *options, fn func(*migration.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	m, err := migration.New(db, opts.path, opts.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			opts.log.Warn("Failed to close migrator", zap.Error(err))
		}
	}()

	return fn(m)
}

// resolveMigrationsPath returns an absolute migrations directory. An empty
// path tries ./migrations and then the directory two levels above the binary.
func resolveMigrationsPath(path string) (string, error) {
	if path == "" {
		path = defaultMigrationsPath
		if _, err := os.Stat(path); err != nil {
			if exe, err := os.Executable(); err == nil {
				candidate := filepath.Join(filepath.Dir(exe), "..", "..", defaultMigrationsPath)
				if _, err := os.Stat(candidate); err == nil {
					path = candidate
				}
			}
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve migrations path: %w", err)
	}
	return abs, nil
}
