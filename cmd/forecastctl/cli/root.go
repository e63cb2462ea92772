// Package cli implements forecastctl, the operator tool for schema
// migrations, row-level policy inspection and credential issuing.
package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/forecast-tournament/forecast/internal/platform/db"
)

// Conn is a single owner connection. Migrations and catalog checks run as
// the schema owner, never as the application role.
type Conn interface {
	db.Conn
	Close(ctx context.Context) error
}

// Deps are the side-effecting collaborators, swappable in tests.
type Deps struct {
	Connect func(ctx context.Context, dsn string) (Conn, error)
	Getenv  func(string) string
	Logger  *slog.Logger
}

// DefaultDeps connects with pgx and reads the process environment.
func DefaultDeps() Deps {
	return Deps{
		Connect: func(ctx context.Context, dsn string) (Conn, error) {
			return pgx.Connect(ctx, dsn)
		},
		Getenv: os.Getenv,
		Logger: slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}
}

var errNoDSN = errors.New("no database: pass --dsn or set PG_DSN")

// NewRootCommand assembles the command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Getenv == nil {
		deps.Getenv = os.Getenv
	}
	root := &cobra.Command{
		Use:           "forecastctl",
		Short:         "Operate the forecast database schema and credentials",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newMigrateCommand(deps))
	root.AddCommand(newPolicyCommand(deps))
	root.AddCommand(newTokenCommand(deps))
	return root
}

// withConn resolves the DSN, connects and runs fn.
func withConn(ctx context.Context, deps Deps, dsn string, fn func(Conn) error) error {
	if dsn == "" {
		dsn = deps.Getenv("PG_DSN")
	}
	if dsn == "" {
		return errNoDSN
	}
	conn, err := deps.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(context.WithoutCancel(ctx)); err != nil {
			deps.Logger.Warn("close connection", slog.Any("error", err))
		}
	}()
	return fn(conn)
}

// stringFlag reads a flag registered through cobraflags from the command's
// own flag set, so every command tree built by NewRootCommand is isolated.
func stringFlag(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}
