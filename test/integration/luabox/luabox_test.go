package luabox_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	intluabox "github.com/slok/luabox/test/integration/luabox"
)

// outcomeOutput matches the JSON output of `luabox run --format json`.
type outcomeOutput struct {
	RunID        string  `json:"run_id"`
	Status       string  `json:"status"`
	Output       *string `json:"output"`
	ErrorKind    string  `json:"error_kind"`
	ErrorDetail  string  `json:"error_detail"`
	Instructions int64   `json:"instructions"`
}

// runOutput matches the JSON output of `luabox history list --format json`.
type runOutput struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func parseOutcome(t *testing.T, data []byte) outcomeOutput {
	t.Helper()
	var o outcomeOutput
	require.NoError(t, json.Unmarshal(data, &o), "output: %s", data)
	return o
}

func TestRunOutcomes(t *testing.T) {
	config := intluabox.NewConfig(t)

	tests := map[string]struct {
		source       string
		extraArgs    []string
		expStatus    string
		expErrorKind string
		expOutput    string
		expErr       bool
	}{
		"A simple program should complete with its output.": {
			source:    `print("hello", 1 + 2)`,
			expStatus: "completed",
			expOutput: "hello\t3\n",
		},

		"Allowed modules should be usable.": {
			source:    `local m = require("math"); print(m.floor(2.7))`,
			expStatus: "completed",
			expOutput: "2\n",
		},

		"Importing a forbidden module should be a policy violation.": {
			source:       `local x = require("io")`,
			expStatus:    "policy_violation",
			expErrorKind: "import",
			expErr:       true,
		},

		"Loading code should be a policy violation.": {
			source:    `loadstring("return 1")()`,
			expStatus: "policy_violation",
			expErr:    true,
		},

		"An infinite loop should exceed the instruction ceiling.": {
			source:       `while true do end`,
			expStatus:    "resource_exceeded",
			expErrorKind: "instructions",
			expErr:       true,
		},

		"A slow program should time out.": {
			source:       `sleep(5)`,
			extraArgs:    []string{"--tool", "sleep"},
			expStatus:    "timed_out",
			expErrorKind: "timeout",
			expErr:       true,
		},

		"A program error should be a runtime fault.": {
			source:       `error("boom")`,
			expStatus:    "runtime_fault",
			expErrorKind: "runtime",
			expErr:       true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			dataDir := t.TempDir()
			intluabox.WritePolicy(t, dataDir, "timeout: 1s\n")

			stdout, stderr, err := intluabox.RunProgram(ctx, config, dataDir, test.source, test.extraArgs...)
			if test.expErr {
				assert.Error(err)
			} else {
				assert.NoError(err, "stderr=%s", stderr)
			}

			o := parseOutcome(t, stdout)
			assert.NotEmpty(o.RunID)
			assert.Equal(test.expStatus, o.Status)
			if test.expErrorKind != "" {
				assert.Equal(test.expErrorKind, o.ErrorKind)
			}
			if test.expOutput != "" {
				require.NotNil(t, o.Output)
				assert.Equal(test.expOutput, *o.Output)
			}
		})
	}
}

func TestHistory(t *testing.T) {
	config := intluabox.NewConfig(t)
	dataDir := t.TempDir()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	stdout, stderr, err := intluabox.RunProgram(ctx, config, dataDir, `print("ok")`)
	require.NoError(t, err, "stderr=%s", stderr)
	completed := parseOutcome(t, stdout)

	stdout, _, err = intluabox.RunProgram(ctx, config, dataDir, `error("ko")`)
	require.Error(t, err)
	failed := parseOutcome(t, stdout)

	// Newest first.
	stdout, stderr, err = intluabox.RunCmd(ctx, config, dataDir, "history list --format json")
	require.NoError(t, err, "stderr=%s", stderr)
	var runs []runOutput
	require.NoError(t, json.Unmarshal(stdout, &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, failed.RunID, runs[0].ID)
	assert.Equal(t, completed.RunID, runs[1].ID)

	stdout, stderr, err = intluabox.RunCmd(ctx, config, dataDir, "history list --format json --status completed")
	require.NoError(t, err, "stderr=%s", stderr)
	require.NoError(t, json.Unmarshal(stdout, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "completed", runs[0].Status)

	stdout, stderr, err = intluabox.RunCmd(ctx, config, dataDir, fmt.Sprintf("history show --format json %s", failed.RunID))
	require.NoError(t, err, "stderr=%s", stderr)
	var run runOutput
	require.NoError(t, json.Unmarshal(stdout, &run))
	assert.Equal(t, "runtime_fault", run.Status)
}

func TestCheck(t *testing.T) {
	config := intluabox.NewConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	_, stderr, err := intluabox.CheckProgram(ctx, config, t.TempDir(), `local a = 1`)
	assert.NoError(t, err, "stderr=%s", stderr)

	_, _, err = intluabox.CheckProgram(ctx, config, t.TempDir(), `setmetatable({}, {})`)
	assert.Error(t, err)
}

func TestPolicy(t *testing.T) {
	config := intluabox.NewConfig(t)
	dataDir := t.TempDir()
	intluabox.WritePolicy(t, dataDir, "timeout: 2s\nallowed_modules: [math]\n")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	stdout, stderr, err := intluabox.RunCmd(ctx, config, dataDir, "policy")
	require.NoError(t, err, "stderr=%s", stderr)
	assert.Contains(t, string(stdout), "timeout: 2s")
	assert.Contains(t, string(stdout), "- math")
}
