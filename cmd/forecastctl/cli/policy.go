package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/forecast-tournament/forecast/internal/policy"
	"github.com/forecast-tournament/forecast/internal/views"
)

const formatFlag = "format"

// errDrift is returned by policy verify when the catalog differs.
var errDrift = errors.New("policy drift detected")

func newPolicyCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy [render|dump|verify]",
		Short: "Inspect the declared row-level policy set",
	}

	render := &cobra.Command{
		Use:   "render",
		Short: "Print the policy and view DDL applied by migrate up",
		RunE: func(cmd *cobra.Command, _ []string) error {
			objects, err := schemaObjects()
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), strings.Join(objects, "\n"))
			return err
		},
	}

	dumpFlags := map[string]cobraflags.Flag{
		formatFlag: &cobraflags.StringFlag{
			Name:  formatFlag,
			Value: "text",
			Usage: "Output format (text, yaml)",
		},
	}
	dump := &cobra.Command{
		Use:   "dump",
		Short: "Describe every table and its policies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return dumpPolicies(cmd.OutOrStdout(), stringFlag(cmd, formatFlag))
		},
	}
	cobraflags.RegisterMap(dump, dumpFlags)

	verifyFlags := dsnFlags()
	verify := &cobra.Command{
		Use:   "verify",
		Short: "Compare the live catalog with the declared policies and views",
		Long: `Read pg_class, pg_policies and view options and report drift: tables
without row-level security, missing or undeclared policies, and projection
views lacking security_invoker or security_barrier. Exits non-zero on drift.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withConn(cmd.Context(), deps, stringFlag(cmd, dsnFlag), func(conn Conn) error {
				report, err := policy.Verify(cmd.Context(), policy.NewPGCatalog(conn), policy.Schema(), views.Names()...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if report.OK() {
					fmt.Fprintln(out, "ok: catalog matches declared policies")
					return nil
				}
				for _, d := range report.Drifts {
					fmt.Fprintln(out, d.String())
				}
				return errDrift
			})
		},
	}
	cobraflags.RegisterMap(verify, verifyFlags)

	cmd.AddCommand(render, dump, verify)
	return cmd
}

func dumpPolicies(w io.Writer, format string) error {
	docs := policy.Describe(policy.Schema())
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(docs); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		for _, t := range docs {
			if t.OwnerColumn != "" {
				fmt.Fprintf(w, "%s (owner: %s)\n", t.Table, t.OwnerColumn)
			} else {
				fmt.Fprintln(w, t.Table)
			}
			if len(t.Policies) == 0 {
				fmt.Fprintln(w, "  (no policies: definer functions only)")
			}
			for _, p := range t.Policies {
				fmt.Fprintf(w, "  %-28s %-6s", p.Name, p.Command)
				if p.Using != "" {
					fmt.Fprintf(w, " USING %s", p.Using)
				}
				if p.Check != "" {
					fmt.Fprintf(w, " WITH CHECK %s", p.Check)
				}
				fmt.Fprintln(w)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q (want text or yaml)", format)
	}
}
