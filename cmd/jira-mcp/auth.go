package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pitabwire/jiramcp/internal/config"
	"github.com/pitabwire/jiramcp/internal/credential"
)

func newAuthCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Jira API token stored in the system keyring",
	}
	cmd.AddCommand(newAuthLoginCmd(opts), newAuthLogoutCmd(opts))
	return cmd
}

func newAuthLoginCmd(opts *rootOptions) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a Jira API token for the configured account",
		Long: `Store a Jira API token in the system keyring under the configured
email and domain. The token is read from --token or, when omitted, from the
first line of standard input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadAccount(opts)
			if err != nil {
				return err
			}
			if token == "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "API token for %s: ", cfg.Jira.Email)
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading token: %w", err)
				}
				token = strings.TrimSpace(line)
			}
			if token == "" {
				return errors.New("token must not be empty")
			}
			if err := credential.NewSource(cfg.Jira.Keyring).Store(cfg.Jira.Email, cfg.Jira.Domain, token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored API token for %s on %s\n", cfg.Jira.Email, cfg.Jira.Domain)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "API token (read from stdin when omitted)")
	return cmd
}

func newAuthLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored Jira API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadAccount(opts)
			if err != nil {
				return err
			}
			if err := credential.NewSource(cfg.Jira.Keyring).Remove(cfg.Jira.Email, cfg.Jira.Domain); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed API token for %s on %s\n", cfg.Jira.Email, cfg.Jira.Domain)
			return nil
		},
	}
}

// loadAccount loads configuration and checks that the keyring is usable for
// the configured account.
func loadAccount(opts *rootOptions) (*config.Config, error) {
	cfg, err := opts.load()
	if err != nil {
		return nil, err
	}
	if !cfg.Jira.Keyring.Enabled {
		return nil, errors.New("keyring is disabled in configuration (jira.keyring.enabled)")
	}
	return cfg, nil
}
