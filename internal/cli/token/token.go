// Package token implements 'runmetrics token' for managing API tokens.
package token

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/runmetrics/runmetrics/internal/auth"
	"github.com/runmetrics/runmetrics/internal/cli/helpers"
	"github.com/runmetrics/runmetrics/internal/httpapi"
)

// NewTokenCmd creates the token command and its subcommands.
func NewTokenCmd() *cobra.Command {
	var tokensFile string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens",
		Long: `Manage the bearer tokens accepted by 'runmetrics serve'.

Each token is bound to one organization, project and environment. The
plaintext token is printed once at creation; only its bcrypt hash is stored.`,
	}

	cmd.PersistentFlags().StringVar(&tokensFile, "tokens-file", "", "Token store path (overrides server.tokens_file)")

	openStore := func(cmd *cobra.Command) (*auth.TokenStore, error) {
		path := tokensFile
		if path == "" {
			cfg, _, err := helpers.LoadConfig(cmd)
			if err != nil {
				return nil, err
			}
			path = cfg.Server.TokensFile
		}
		return auth.NewTokenStore(path)
	}

	cmd.AddCommand(newCreateCmd(openStore))
	cmd.AddCommand(newListCmd(openStore))
	cmd.AddCommand(newRevokeCmd(openStore))
	cmd.AddCommand(newDeleteCmd(openStore))

	return cmd
}

type storeOpener func(cmd *cobra.Command) (*auth.TokenStore, error)

func newCreateCmd(open storeOpener) *cobra.Command {
	var (
		scope       auth.Scope
		permissions []string
		rateLimit   string
	)

	cmd := &cobra.Command{
		Use:   "create <token-id>",
		Short: "Create a token",
		Example: `  runmetrics token create dashboard --org org_1 --project proj_1 --env env_1
  runmetrics token create ci --org org_1 --project proj_1 --env env_1 --rate-limit 100/hour`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			perms, err := parsePermissions(permissions)
			if err != nil {
				return err
			}
			if _, err := httpapi.ParseRateLimit(rateLimit); err != nil {
				return err
			}

			store, err := open(cmd)
			if err != nil {
				return err
			}

			info, err := store.GenerateToken(args[0], scope, perms, rateLimit)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Token created: %s\n", info.TokenID)
			fmt.Fprintf(cmd.OutOrStdout(), "Scope:         %s\n", info.Scope)
			fmt.Fprintf(cmd.OutOrStdout(), "Permissions:   %s\n", joinPermissions(info.Permissions))
			if info.RateLimit != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Rate limit:    %s\n", info.RateLimit)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n\nStore this token now, it cannot be shown again.\n", info.Token)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&scope.OrganizationID, "org", "", "Organization ID")
	flags.StringVar(&scope.ProjectID, "project", "", "Project ID")
	flags.StringVar(&scope.EnvironmentID, "env", "", "Environment ID")
	flags.StringSliceVar(&permissions, "permissions", []string{string(auth.PermissionQuery)}, "Permissions (query, admin)")
	flags.StringVar(&rateLimit, "rate-limit", "", "Rate limit such as 100/hour")

	return cmd
}

type tokenRow struct {
	ID          string `header:"ID"`
	Scope       string `header:"SCOPE"`
	Permissions string `header:"PERMISSIONS"`
	RateLimit   string `header:"RATE LIMIT"`
	Created     string `header:"CREATED"`
	LastUsed    string `header:"LAST USED"`
}

func newListCmd(open storeOpener) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := helpers.NewFormatter(helpers.OutputFormat(format))
			if err != nil {
				return err
			}

			store, err := open(cmd)
			if err != nil {
				return err
			}

			tokens := store.ListTokens()
			if helpers.OutputFormat(format) == helpers.FormatJSON {
				return formatter.Format(tokens, cmd.OutOrStdout())
			}
			if len(tokens) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tokens")
				return nil
			}

			rows := make([]tokenRow, len(tokens))
			for i, t := range tokens {
				rows[i] = tokenRow{
					ID:          t.TokenID,
					Scope:       t.Scope.String(),
					Permissions: joinPermissions(t.Permissions),
					RateLimit:   t.RateLimit,
					Created:     t.CreatedAt.Format(time.RFC3339),
					LastUsed:    "never",
				}
				if t.LastUsedAt != nil {
					rows[i].LastUsed = t.LastUsedAt.Format(time.RFC3339)
				}
			}
			return formatter.Format(rows, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&format, "format", "o", string(helpers.FormatTable), "Output format (table, json, csv)")

	return cmd
}

func newRevokeCmd(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <token-id>",
		Short: "Revoke a token without removing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			if err := store.RevokeToken(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token %s revoked\n", args[0])
			return nil
		},
	}
}

func newDeleteCmd(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <token-id>",
		Short: "Delete a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			if err := store.DeleteToken(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token %s deleted\n", args[0])
			return nil
		},
	}
}

func parsePermissions(values []string) ([]auth.Permission, error) {
	perms := make([]auth.Permission, 0, len(values))
	for _, v := range values {
		p := auth.ParsePermission(strings.TrimSpace(v))
		if p == "" {
			return nil, fmt.Errorf("unknown permission %q", v)
		}
		perms = append(perms, p)
	}
	return perms, nil
}

func joinPermissions(perms []auth.Permission) string {
	s := make([]string, len(perms))
	for i, p := range perms {
		s[i] = string(p)
	}
	return strings.Join(s, ",")
}
