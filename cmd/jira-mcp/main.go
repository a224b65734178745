// Command jira-mcp serves Jira tools and guided workflows to MCP clients.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pitabwire/jiramcp/internal/config"
	"github.com/pitabwire/jiramcp/internal/observability"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	envFile    string
}

func (o *rootOptions) load() (*config.Config, error) {
	return config.Load(o.configPath, o.envFile)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	observability.Version = version
	observability.Commit = commit

	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "jira-mcp",
		Short: "MCP server for Jira with guided workflows",
		Long: `jira-mcp exposes Jira projects and issues as Model Context Protocol tools
and walks callers through multi-step workflows triggered by those tools.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		// Running the binary without a subcommand serves over stdio, as MCP
		// clients launch it.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to YAML configuration file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to .env file")

	root.AddCommand(
		newServeCmd(opts),
		newWorkflowsCmd(opts),
		newAuthCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "jira-mcp %s (commit %s)\n", version, commit)
		},
	}
}
