package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/luabox/internal/app/history"
	"github.com/slok/luabox/internal/model"
	"github.com/slok/luabox/internal/printer"
)

// HistoryCommand is the parent command for the run history subcommands.
type HistoryCommand struct {
	Cmd *kingpin.CmdClause

	format string
}

// NewHistoryCommand returns the history parent command.
func NewHistoryCommand(app *kingpin.Application) *HistoryCommand {
	c := &HistoryCommand{}

	c.Cmd = app.Command("history", "Inspect the recorded runs.")
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c *HistoryCommand) printer(rootCmd *RootCommand) printer.Printer {
	if c.format == "json" {
		return printer.NewJSONPrinter(rootCmd.Stdout)
	}
	return printer.NewTablePrinter(rootCmd.Stdout)
}

// HistoryListCommand lists the recorded runs.
type HistoryListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
	histCmd *HistoryCommand

	statusFilter string
	limit        int
}

// NewHistoryListCommand returns the history list command.
func NewHistoryListCommand(rootCmd *RootCommand, histCmd *HistoryCommand) *HistoryListCommand {
	c := &HistoryListCommand{rootCmd: rootCmd, histCmd: histCmd}

	c.Cmd = histCmd.Cmd.Command("list", "List the recorded runs, newest first.")
	c.Cmd.Flag("status", "Filter by status (completed, syntax_error, policy_violation, resource_exceeded, timed_out, runtime_fault).").StringVar(&c.statusFilter)
	c.Cmd.Flag("limit", "Max number of runs listed, 0 lists all.").Default("20").IntVar(&c.limit)

	return c
}

func (c HistoryListCommand) Name() string { return c.Cmd.FullCommand() }

func (c HistoryListCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	var statusFilter *model.OutcomeStatus
	if c.statusFilter != "" {
		status, err := parseOutcomeStatus(c.statusFilter)
		if err != nil {
			return err
		}
		statusFilter = &status
	}

	repo, err := c.rootCmd.newRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	svc, err := history.NewService(history.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	runs, err := svc.List(ctx, history.ListRequest{
		StatusFilter: statusFilter,
		Limit:        c.limit,
	})
	if err != nil {
		return fmt.Errorf("could not list runs: %w", err)
	}

	if err := c.histCmd.printer(c.rootCmd).PrintRunList(runs); err != nil {
		return fmt.Errorf("could not print runs: %w", err)
	}

	return nil
}

func parseOutcomeStatus(s string) (model.OutcomeStatus, error) {
	status := model.OutcomeStatus(strings.ToLower(s))
	switch status {
	case model.OutcomeStatusCompleted,
		model.OutcomeStatusSyntaxError,
		model.OutcomeStatusPolicyViolation,
		model.OutcomeStatusResourceExceeded,
		model.OutcomeStatusTimedOut,
		model.OutcomeStatusRuntimeFault:
		return status, nil
	}
	return "", fmt.Errorf("invalid status filter: %s", s)
}

// HistoryShowCommand shows a single recorded run.
type HistoryShowCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
	histCmd *HistoryCommand

	id string
}

// NewHistoryShowCommand returns the history show command.
func NewHistoryShowCommand(rootCmd *RootCommand, histCmd *HistoryCommand) *HistoryShowCommand {
	c := &HistoryShowCommand{rootCmd: rootCmd, histCmd: histCmd}

	c.Cmd = histCmd.Cmd.Command("show", "Show a recorded run.")
	c.Cmd.Arg("id", "Run ID.").Required().StringVar(&c.id)

	return c
}

func (c HistoryShowCommand) Name() string { return c.Cmd.FullCommand() }

func (c HistoryShowCommand) Run(ctx context.Context) error {
	repo, err := c.rootCmd.newRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	svc, err := history.NewService(history.ServiceConfig{
		Repository: repo,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	r, err := svc.Get(ctx, c.id)
	if err != nil {
		return fmt.Errorf("could not get run: %w", err)
	}

	if err := c.histCmd.printer(c.rootCmd).PrintRun(*r); err != nil {
		return fmt.Errorf("could not print run: %w", err)
	}

	return nil
}
