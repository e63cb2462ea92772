package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/forecast-tournament/forecast/internal/auth"
)

const (
	loginIDFlag = "login-id"
	ttlFlag     = "ttl"
	issuerFlag  = "issuer"
)

func newTokenCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token [issue]",
		Short: "Issue credential tokens",
	}

	issueFlags := map[string]cobraflags.Flag{
		loginIDFlag: &cobraflags.StringFlag{
			Name:  loginIDFlag,
			Value: "",
			Usage: "Login id placed in the token subject (required)",
		},
		ttlFlag: &cobraflags.StringFlag{
			Name:  ttlFlag,
			Value: "1h",
			Usage: "Token lifetime",
		},
		issuerFlag: &cobraflags.StringFlag{
			Name:  issuerFlag,
			Value: "forecast",
			Usage: "Token issuer, must match TOKEN_ISSUER",
		},
	}
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign a token cookie value for a login (TOKEN_SECRET from the environment)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			loginID, err := strconv.ParseInt(stringFlag(cmd, loginIDFlag), 10, 64)
			if err != nil || loginID <= 0 {
				return fmt.Errorf("--%s must be a positive integer", loginIDFlag)
			}
			ttl, err := time.ParseDuration(stringFlag(cmd, ttlFlag))
			if err != nil || ttl <= 0 {
				return fmt.Errorf("--%s must be a positive duration", ttlFlag)
			}
			secret := deps.Getenv("TOKEN_SECRET")
			if secret == "" {
				return fmt.Errorf("TOKEN_SECRET is not set")
			}
			tok, err := auth.NewTokenSigner(secret, stringFlag(cmd, issuerFlag), ttl, false).Issue(loginID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Value)
			return nil
		},
	}
	cobraflags.RegisterMap(issue, issueFlags)

	cmd.AddCommand(issue)
	return cmd
}
