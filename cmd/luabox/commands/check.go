package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/luabox/internal/app/check"
	"github.com/slok/luabox/internal/model"
	"github.com/slok/luabox/internal/printer"
)

type CheckCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	file   string
	format string
}

// NewCheckCommand returns the check command.
func NewCheckCommand(rootCmd *RootCommand, app *kingpin.Application) *CheckCommand {
	c := &CheckCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("check", "Validate a program against the policy without running it.")
	c.Cmd.Arg("file", "Program file, use - to read it from stdin.").Required().StringVar(&c.file)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c CheckCommand) Name() string { return c.Cmd.FullCommand() }

func (c CheckCommand) Run(ctx context.Context) error {
	source, err := readSource(c.rootCmd.Stdin, c.file)
	if err != nil {
		return err
	}

	available, err := c.rootCmd.newToolSet()
	if err != nil {
		return err
	}
	policy, err := c.rootCmd.loadPolicy(ctx, available)
	if err != nil {
		return err
	}

	eng, err := c.rootCmd.newEngine()
	if err != nil {
		return fmt.Errorf("could not create engine: %w", err)
	}

	svc, err := check.NewService(check.ServiceConfig{
		Engine: eng,
		Logger: c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	results, err := svc.Run(ctx, check.Request{Source: source, Policy: policy})
	if err != nil {
		return fmt.Errorf("could not check program: %w", err)
	}

	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default: // table
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	if err := p.PrintCheck(results); err != nil {
		return fmt.Errorf("could not print checks: %w", err)
	}

	if model.HasErrors(results) {
		_, _, errs := model.CountByStatus(results)
		return fmt.Errorf("program rejected with %d error(s)", errs)
	}

	return nil
}
