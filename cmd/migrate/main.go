package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/ogurasousui/personnel-backoffice/internal/platform/config"
	"github.com/ogurasousui/personnel-backoffice/internal/platform/logger"
)

// seedsTable は初期データの適用履歴を管理するテーブルです。スキーマの履歴とは分けて管理します。
const seedsTable = "schema_seeds"

type options struct {
	configPath    string
	migrationsDir string
	seedsDir      string
	logLevel      string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the backoffice database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")
	flags.StringVar(&opts.migrationsDir, "dir", "assets/migrations", "directory containing migration files")
	flags.StringVar(&opts.seedsDir, "seeds", "assets/seeds", "directory containing seed files")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		upCmd(opts),
		downCmd(opts),
		dropCmd(opts),
		versionCmd(opts),
		seedCmd(opts),
	)
	return cmd
}

func upCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "up [N]",
		Short: "Apply all or N pending migrations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := parseSteps(args)
			if err != nil {
				return err
			}
			return withMigrate(opts, opts.migrationsDir, false, func(m *migrate.Migrate, l *logger.Logger) error {
				if steps > 0 {
					err = m.Steps(steps)
				} else {
					err = m.Up()
				}
				return logCompletion(l, "up", ignoreNoChange(err))
			})
		},
	}
}

func downCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "down [N]",
		Short: "Roll back all or N applied migrations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := parseSteps(args)
			if err != nil {
				return err
			}
			return withMigrate(opts, opts.migrationsDir, false, func(m *migrate.Migrate, l *logger.Logger) error {
				if steps > 0 {
					err = m.Steps(-steps)
				} else {
					err = m.Down()
				}
				return logCompletion(l, "down", ignoreNoChange(err))
			})
		},
	}
}

func dropCmd(opts *options) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop every table in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return errors.New("drop removes all data; rerun with --force to confirm")
			}
			return withMigrate(opts, opts.migrationsDir, false, func(m *migrate.Migrate, l *logger.Logger) error {
				return logCompletion(l, "drop", m.Drop())
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "confirm dropping all tables")
	return cmd
}

func versionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrate(opts, opts.migrationsDir, false, func(m *migrate.Migrate, l *logger.Logger) error {
				version, dirty, err := m.Version()
				if err != nil {
					if errors.Is(err, migrate.ErrNilVersion) {
						l.Infow("no migration applied")
						return nil
					}
					return err
				}
				l.Infow("schema version", "version", version, "dirty", dirty)
				return nil
			})
		},
	}
}

func seedCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Apply seed data for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrate(opts, opts.seedsDir, true, func(m *migrate.Migrate, l *logger.Logger) error {
				return logCompletion(l, "seed", ignoreNoChange(m.Up()))
			})
		},
	}
}

func withMigrate(opts *options, dir string, seeds bool, fn func(*migrate.Migrate, *logger.Logger) error) error {
	l, err := logger.New(logger.Config{Level: opts.logLevel, Development: true})
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	cfg, err := config.Load(effectiveConfigPath(opts.configPath))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dsn := cfg.Database.DSN()
	if seeds {
		if dsn, err = seedDSN(dsn); err != nil {
			return err
		}
	}

	m, err := newMigrate(dir, dsn)
	if err != nil {
		return err
	}
	defer m.Close()
	m.Log = migrateLogger{l: l.Named("migrate")}

	return fn(m, l)
}

func effectiveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "assets/local.yaml"
}

func newMigrate(dir, dsn string) (*migrate.Migrate, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve path for %s: %w", dir, err)
	}
	absDir = filepath.ToSlash(absDir)

	m, err := migrate.New(fmt.Sprintf("file://%s", absDir), dsn)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

// seedDSN は初期データ用の履歴テーブルを指定した DSN を返します。
func seedDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}
	q := u.Query()
	q.Set("x-migrations-table", seedsTable)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func parseSteps(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("steps must be a positive integer, got %q", args[0])
	}
	return n, nil
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

func logCompletion(l *logger.Logger, action string, err error) error {
	if err != nil {
		return fmt.Errorf("migration %s failed: %w", action, err)
	}
	l.Infow("migration completed", "action", action)
	return nil
}

// migrateLogger は golang-migrate のログを zap に出力します。
type migrateLogger struct {
	l *logger.Logger
}

func (m migrateLogger) Printf(format string, v ...any) {
	m.l.Infof(format, v...)
}

func (m migrateLogger) Verbose() bool {
	return m.l.Desugar().Core().Enabled(zapcore.DebugLevel)
}
