// Command migrate applies the PostgreSQL schema for the contact store.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/myphonelist/backend/internal/config"
	"github.com/myphonelist/backend/internal/logging"
	"github.com/myphonelist/backend/internal/repository"
	"github.com/myphonelist/backend/migrations"
	"github.com/spf13/cobra"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, "text")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(cfg, connectPostgres).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// connectFunc opens the database the migrator runs against.
type connectFunc func(ctx context.Context, dsn string) (db, io.Closer, error)

func connectPostgres(ctx context.Context, dsn string) (db, io.Closer, error) {
	pool, err := repository.NewPool(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return pool, closerFunc(pool.Close), nil
}

type closerFunc func()

func (f closerFunc) Close() error { f(); return nil }

// errNotPostgres is returned for drivers that create their schema on open.
var errNotPostgres = errors.New("migrate only manages PostgreSQL")

func newRootCmd(cfg *config.Config, connect connectFunc) *cobra.Command {
	var m *migrator
	var conn io.Closer

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply the contacts schema to PostgreSQL (DATABASE_DRIVER=postgres)",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.DatabaseDriver != repository.DriverPostgres {
				// sqlite と memory はストアのオープン時にテーブルを作る
				return fmt.Errorf("%w: DATABASE_DRIVER=%q creates its schema when the store opens", errNotPostgres, cfg.DatabaseDriver)
			}
			d, c, err := connect(cmd.Context(), cfg.DSN())
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			m, conn = newMigrator(d, migrations.FS), c
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return conn.Close()
		},
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := m.Up(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied: %d\n", n)
			return nil
		},
	}

	var yes bool
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Drop the contacts table and re-apply every migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("reset deletes every contact; pass --yes to confirm")
			}
			if err := m.DropAll(cmd.Context()); err != nil {
				return err
			}
			n, err := m.Up(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema reset, migrations applied: %d\n", n)
			return nil
		},
	}
	reset.Flags().BoolVar(&yes, "yes", false, "confirm dropping all data")

	status := &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			for _, e := range entries {
				state := "pending"
				if e.Applied {
					state = "applied"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", state, e.Name)
			}
			return nil
		},
	}

	root.AddCommand(up, reset, status)
	return root
}
