package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	storageio "github.com/slok/luabox/internal/storage/io"
)

// PolicyCommand prints the effective sandbox policy.
type PolicyCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewPolicyCommand returns the policy command.
func NewPolicyCommand(rootCmd *RootCommand, app *kingpin.Application) *PolicyCommand {
	c := &PolicyCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("policy", "Print the effective sandbox policy as YAML.")

	return c
}

func (c PolicyCommand) Name() string { return c.Cmd.FullCommand() }

func (c PolicyCommand) Run(ctx context.Context) error {
	available, err := c.rootCmd.newToolSet()
	if err != nil {
		return err
	}
	policy, err := c.rootCmd.loadPolicy(ctx, available)
	if err != nil {
		return err
	}

	data, err := storageio.MarshalPolicy(policy)
	if err != nil {
		return fmt.Errorf("could not marshal policy: %w", err)
	}

	if _, err := c.rootCmd.Stdout.Write(data); err != nil {
		return fmt.Errorf("could not print policy: %w", err)
	}

	return nil
}
