package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/luabox/internal/app/run"
	"github.com/slok/luabox/internal/model"
	"github.com/slok/luabox/internal/printer"
	"github.com/slok/luabox/internal/storage"
	"github.com/slok/luabox/internal/storage/memory"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	file      string
	format    string
	noHistory bool
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Run an untrusted program in the sandbox.")
	c.Cmd.Arg("file", "Program file, use - to read it from stdin.").Required().StringVar(&c.file)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")
	c.Cmd.Flag("no-history", "Don't record the run in the history.").BoolVar(&c.noHistory)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

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

	var repo storage.Repository
	if c.noHistory {
		repo, err = memory.NewRepository(memory.RepositoryConfig{Logger: logger})
		if err != nil {
			return fmt.Errorf("could not create repository: %w", err)
		}
	} else {
		sqliteRepo, err := c.rootCmd.newRepository(ctx)
		if err != nil {
			return err
		}
		defer sqliteRepo.Close()
		repo = sqliteRepo
	}

	svc, err := run.NewService(run.ServiceConfig{
		Engine:     eng,
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	outcome, err := svc.Run(ctx, run.Request{Source: source, Policy: policy})
	if err != nil {
		return fmt.Errorf("could not run program: %w", err)
	}

	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default: // table
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	if err := p.PrintOutcome(*outcome); err != nil {
		return fmt.Errorf("could not print outcome: %w", err)
	}

	// The exit code tells scripts if the program completed.
	if outcome.Status != model.OutcomeStatusCompleted {
		return fmt.Errorf("program run %s finished with status %s", outcome.RunID, outcome.Status)
	}

	return nil
}
