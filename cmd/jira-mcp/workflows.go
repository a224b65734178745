package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pitabwire/jiramcp/internal/definition"
	"github.com/pitabwire/jiramcp/internal/invoker"
	"github.com/pitabwire/jiramcp/internal/workflow"
	"github.com/pitabwire/jiramcp/model"
)

func newWorkflowsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "List the workflow definitions the server would load",
		Long: `List the built-in workflow definitions together with those found in the
configured definition directories. Invalid definition files fail the command
with the same errors the server reports at startup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			defs, err := loadDefinitions(cfg.Workflow.Directories)
			if err != nil {
				return err
			}
			printDefinitions(cmd.OutOrStdout(), defs)
			return nil
		},
	}
	cmd.AddCommand(newWorkflowHistoryCmd(opts))
	return cmd
}

func newWorkflowHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <workflow-id>",
		Short: "Show recorded events for a workflow",
		Long:  "Show the most recent audit events for a workflow. Requires the postgres audit driver.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Workflow.Audit.Driver != "postgres" {
				return fmt.Errorf("workflow history requires the postgres audit driver, configured driver is %q", cfg.Workflow.Audit.Driver)
			}
			pool, err := openPool(cmd.Context(), cfg.Workflow.Audit)
			if err != nil {
				return err
			}
			sink := workflow.NewPgEventSink(pool)
			defer sink.Close()

			events, err := sink.Events(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			printEvents(cmd.OutOrStdout(), events)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of events to show")
	return cmd
}

// loadDefinitions runs the same load and validation as server startup.
func loadDefinitions(dirs []string) ([]model.WorkflowDefinition, error) {
	actions := invoker.NewActionRegistry()
	workflow.RegisterBuiltinActions(actions)
	registry := definition.NewRegistry()
	catalog := definition.NewCatalog(registry, definition.NewValidator(actions),
		workflow.Builtins(), dirs, zap.NewNop())
	if err := catalog.Reload(); err != nil {
		return nil, fmt.Errorf("loading workflow definitions: %w", err)
	}
	return registry.All(), nil
}

func printDefinitions(w io.Writer, defs []model.WorkflowDefinition) {
	if len(defs) == 0 {
		fmt.Fprintln(w, "No workflow definitions found.")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "Name", "Trigger", "Steps", "Source"})
	for _, def := range defs {
		trigger := def.Trigger
		if trigger == "" {
			trigger = "-"
		}
		source := def.SourceFile
		if source == "" {
			source = "builtin"
		}
		t.AppendRow(table.Row{def.ID, def.Name, trigger, strconv.Itoa(len(def.Steps)), source})
	}
	t.Render()
}

func printEvents(w io.Writer, events []model.WorkflowEvent) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events recorded.")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Time", "Type", "Step", "Actor", "Detail"})
	for _, ev := range events {
		detail := ev.Response
		if ev.Error != "" {
			detail = "error: " + ev.Error
		}
		t.AppendRow(table.Row{
			ev.Timestamp.UTC().Format(time.RFC3339),
			ev.Type,
			ev.StepID,
			ev.ActorID,
			truncate(strings.ReplaceAll(detail, "\n", " "), 60),
		})
	}
	t.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
