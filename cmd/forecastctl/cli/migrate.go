package cli

import (
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/forecast-tournament/forecast/internal/platform/db"
	"github.com/forecast-tournament/forecast/internal/policy"
	"github.com/forecast-tournament/forecast/internal/views"
)

const dsnFlag = "dsn"

func dsnFlags() map[string]cobraflags.Flag {
	return map[string]cobraflags.Flag{
		dsnFlag: &cobraflags.StringFlag{
			Name:  dsnFlag,
			Value: "",
			Usage: "Owner connection string (defaults to PG_DSN)",
		},
	}
}

// schemaObjects are re-applied after every migrate up.
func schemaObjects() ([]string, error) {
	viewDDL, err := views.Render(views.All()...)
	if err != nil {
		return nil, err
	}
	return []string{policy.RenderDDL(policy.Schema()), viewDDL}, nil
}

func newMigrateCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|status]",
		Short: "Apply or inspect schema migrations",
	}

	upFlags := dsnFlags()
	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations, then policies and views",
		Long: `Apply embedded migrations in version order, one transaction each,
then re-apply the rendered row-level policies and projection views.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			objects, err := schemaObjects()
			if err != nil {
				return err
			}
			return withConn(cmd.Context(), deps, stringFlag(cmd, dsnFlag), func(conn Conn) error {
				migrator := db.NewMigrator(conn, db.EmbeddedMigrations(), deps.Logger, objects...)
				done, err := migrator.Up(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s) %v\n", len(done), done)
				return nil
			})
		},
	}
	cobraflags.RegisterMap(up, upFlags)

	statusFlags := dsnFlags()
	status := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withConn(cmd.Context(), deps, stringFlag(cmd, dsnFlag), func(conn Conn) error {
				st, err := db.NewMigrator(conn, db.EmbeddedMigrations(), deps.Logger).Status(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "current: %d\n", st.CurrentVersion)
				fmt.Fprintf(out, "applied: %v\n", st.Applied)
				fmt.Fprintf(out, "pending: %v\n", st.Pending)
				return nil
			})
		},
	}
	cobraflags.RegisterMap(status, statusFlags)

	cmd.AddCommand(up, status)
	return cmd
}
