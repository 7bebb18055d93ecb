package printer

import "github.com/slok/luabox/internal/model"

// Printer knows how to print run information in different formats.
type Printer interface {
	PrintOutcome(o model.ExecutionOutcome) error
	PrintCheck(results []model.CheckResult) error
	PrintRunList(runs []model.RunRecord) error
	PrintRun(run model.RunRecord) error
	PrintMessage(msg string) error
}
