package printer_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/luabox/internal/model"
	"github.com/slok/luabox/internal/printer"
)

func runFixture() model.RunRecord {
	return model.RunRecord{
		ID:           "01JABCDEFGHJKMNPQRSTVWXYZ0",
		SourceDigest: model.SourceDigest("print(1)"),
		Status:       model.OutcomeStatusPolicyViolation,
		ErrorKind:    "import",
		ErrorDetail:  `line 1: module "socket" is not allowed`,
		Instructions: 1500,
		Duration:     3 * time.Millisecond,
		CreatedAt:    time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC),
	}
}

func TestTablePrinterPrintOutcome(t *testing.T) {
	tests := map[string]struct {
		outcome   func() model.ExecutionOutcome
		expOut    string
		expOutHas []string
	}{
		"Completed outcomes should print only the program output.": {
			outcome: func() model.ExecutionOutcome { return *model.NewCompletedOutcome("1024\n") },
			expOut:  "1024\n",
		},

		"Failed outcomes should print the error details.": {
			outcome: func() model.ExecutionOutcome {
				o := model.NewResourceExceededOutcome(model.ResourceKindInstructions, 20000, 20000)
				o.RunID = "run-1"
				o.Instructions = 20000
				o.PeakMemory = 2 * 1024 * 1024
				return *o
			},
			expOutHas: []string{
				"Run:          run-1",
				"Status:       resource_exceeded",
				"Error:        instructions",
				"Detail:       instructions ceiling exceeded: observed 20000, limit 20000",
				"Instructions: 20,000",
				"Peak memory:  2.0 MiB",
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			p := printer.NewTablePrinter(&buf)

			err := p.PrintOutcome(test.outcome())
			require.NoError(t, err)

			if test.expOut != "" {
				assert.Equal(t, test.expOut, buf.String())
			}
			for _, s := range test.expOutHas {
				assert.Contains(t, buf.String(), s)
			}
		})
	}
}

func TestJSONPrinterPrintOutcome(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	o := model.NewCompletedOutcome("")
	o.RunID = "run-1"
	o.Duration = 1500 * time.Microsecond
	err := p.PrintOutcome(*o)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"run_id": "run-1"`)
	assert.Contains(t, out, `"status": "completed"`)
	assert.Contains(t, out, `"output": ""`)
	assert.Contains(t, out, `"duration_ms": 1.5`)
	assert.NotContains(t, out, "error_kind")
}

func TestTablePrinterPrintCheck(t *testing.T) {
	tests := map[string]struct {
		results []model.CheckResult
		expOut  []string
	}{
		"All passed checks should print a success summary.": {
			results: []model.CheckResult{
				{ID: "syntax", Message: "Source structure is allowed", Status: model.CheckStatusOK},
			},
			expOut: []string{"OK syntax", "All checks passed!"},
		},

		"Failed checks should print the counts.": {
			results: []model.CheckResult{
				{ID: "module_json", Message: "not available", Status: model.CheckStatusWarning},
				{ID: "syntax", Message: "nope", Status: model.CheckStatusError},
			},
			expOut: []string{"!! module_json", "XX syntax", "1 error(s), 1 warning(s)"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			p := printer.NewTablePrinter(&buf)

			require.NoError(t, p.PrintCheck(test.results))
			for _, s := range test.expOut {
				assert.Contains(t, buf.String(), s)
			}
		})
	}
}

func TestJSONPrinterPrintCheck(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintCheck([]model.CheckResult{{ID: "syntax", Message: "ok", Status: model.CheckStatusOK}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id": "syntax", "status": "ok", "message": "ok"}]`, buf.String())
}

func TestTablePrinterPrintRunList(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	completed := runFixture()
	completed.ID = "01JABCDEFGHJKMNPQRSTVWXYZ1"
	completed.Status = model.OutcomeStatusCompleted
	completed.ErrorKind = ""

	err := p.PrintRunList([]model.RunRecord{completed, runFixture()})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "ID")
	assert.Contains(t, lines[1], "completed")
	assert.Contains(t, lines[1], " - ")
	assert.Contains(t, lines[2], "policy_violation")
	assert.Contains(t, lines[2], "import")
	assert.Contains(t, lines[2], "1,500")
}

func TestTablePrinterPrintRunListEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printer.NewTablePrinter(&buf).PrintRunList(nil))
	assert.Empty(t, buf.String())
}

func TestTablePrinterPrintRun(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	require.NoError(t, p.PrintRun(runFixture()))

	out := buf.String()
	assert.Contains(t, out, "Status:       policy_violation")
	assert.Contains(t, out, `Detail:       line 1: module "socket" is not allowed`)
	assert.Contains(t, out, "Created:      2026-01-30 10:00:00 UTC")
	assert.Contains(t, out, "Source:       sha256:"+model.SourceDigest("print(1)"))
}

func TestJSONPrinterPrintRun(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	require.NoError(t, p.PrintRun(runFixture()))

	out := buf.String()
	assert.Contains(t, out, `"status": "policy_violation"`)
	assert.Contains(t, out, `"error_kind": "import"`)
	assert.Contains(t, out, `"duration_ms": 3`)
	assert.Contains(t, out, `"created_at": "2026-01-30T10:00:00Z"`)
}

func TestTablePrinterPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintMessage("ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", strings.TrimSpace(buf.String()))
}
