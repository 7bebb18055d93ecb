package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/luabox/internal/model"
	"github.com/slok/luabox/internal/printer"
)

// doctorProbe is the program used to check the engine works with the policy.
const doctorProbe = "local x = 1 + 1"

type DoctorCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewDoctorCommand returns the doctor command.
func NewDoctorCommand(rootCmd *RootCommand, app *kingpin.Application) *DoctorCommand {
	c := &DoctorCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("doctor", "Run preflight checks for the data dir, the history and the policy.")

	return c
}

func (c DoctorCommand) Name() string { return c.Cmd.FullCommand() }

func (c DoctorCommand) Run(ctx context.Context) error {
	var results []model.CheckResult
	results = append(results, c.checkDataDir())
	results = append(results, c.checkDatabase(ctx))

	available, err := c.rootCmd.newToolSet()
	if err != nil {
		results = append(results, model.CheckResult{ID: "tools", Message: err.Error(), Status: model.CheckStatusError})
	} else {
		results = append(results, checkTools(available))
		results = append(results, c.checkPolicy(ctx, available)...)
	}

	if err := printer.NewTablePrinter(c.rootCmd.Stdout).PrintCheck(results); err != nil {
		return fmt.Errorf("could not print checks: %w", err)
	}

	if model.HasErrors(results) {
		_, _, errs := model.CountByStatus(results)
		return fmt.Errorf("preflight checks failed with %d error(s)", errs)
	}

	return nil
}

func (c DoctorCommand) checkDataDir() model.CheckResult {
	if err := os.MkdirAll(c.rootCmd.DataDir, 0o755); err != nil {
		return model.CheckResult{ID: "data_dir", Message: fmt.Sprintf("Can't create %s: %s", c.rootCmd.DataDir, err), Status: model.CheckStatusError}
	}
	f, err := os.CreateTemp(c.rootCmd.DataDir, ".doctor-*")
	if err != nil {
		return model.CheckResult{ID: "data_dir", Message: fmt.Sprintf("%s is not writable: %s", c.rootCmd.DataDir, err), Status: model.CheckStatusError}
	}
	f.Close()
	os.Remove(f.Name())

	return model.CheckResult{ID: "data_dir", Message: fmt.Sprintf("%s is writable", c.rootCmd.DataDir), Status: model.CheckStatusOK}
}

func (c DoctorCommand) checkDatabase(ctx context.Context) model.CheckResult {
	repo, err := c.rootCmd.newRepository(ctx)
	if err != nil {
		return model.CheckResult{ID: "database", Message: err.Error(), Status: model.CheckStatusError}
	}
	defer repo.Close()

	version, err := repo.SchemaVersion(ctx)
	if err != nil {
		return model.CheckResult{ID: "database", Message: err.Error(), Status: model.CheckStatusError}
	}

	return model.CheckResult{ID: "database", Message: fmt.Sprintf("%s (schema v%d)", c.rootCmd.dbPath(), version), Status: model.CheckStatusOK}
}

func checkTools(available model.ToolSet) model.CheckResult {
	if _, ok := available.Get("system_stats"); !ok {
		return model.CheckResult{ID: "tools", Message: "system_stats is not available on this host", Status: model.CheckStatusWarning}
	}
	return model.CheckResult{ID: "tools", Message: fmt.Sprintf("%d tools available", available.Len()), Status: model.CheckStatusOK}
}

func (c DoctorCommand) checkPolicy(ctx context.Context, available model.ToolSet) []model.CheckResult {
	policy, err := c.rootCmd.loadPolicy(ctx, available)
	if err != nil {
		return []model.CheckResult{{ID: "policy", Message: err.Error(), Status: model.CheckStatusError}}
	}
	results := []model.CheckResult{{
		ID:      "policy",
		Message: fmt.Sprintf("%d modules and %d tools allowed", len(policy.AllowedModules), policy.Tools.Len()),
		Status:  model.CheckStatusOK,
	}}

	eng, err := c.rootCmd.newEngine()
	if err != nil {
		return append(results, model.CheckResult{ID: "engine", Message: err.Error(), Status: model.CheckStatusError})
	}
	engResults, err := eng.Check(ctx, doctorProbe, policy)
	if err != nil {
		return append(results, model.CheckResult{ID: "engine", Message: err.Error(), Status: model.CheckStatusError})
	}

	return append(results, engResults...)
}
