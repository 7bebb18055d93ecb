package lib_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/luabox/pkg/lib"
)

// newTestClient creates a client with a temp SQLite DB for test isolation.
func newTestClient(t *testing.T, engine lib.EngineType) *lib.Client {
	t.Helper()

	client, err := lib.New(context.Background(), lib.Config{
		DataDir: t.TempDir(),
		Engine:  engine,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func TestRun(t *testing.T) {
	tests := map[string]struct {
		source       string
		policy       *lib.Policy
		expStatus    lib.OutcomeStatus
		expOutput    string
		expErrorKind string
		expErrIs     error
	}{
		"A program should complete with its output.": {
			source:    `print("a", 1)`,
			expStatus: lib.OutcomeStatusCompleted,
			expOutput: "a\t1\n",
		},

		"A syntax error should be reported in the outcome.": {
			source:       `print(`,
			expStatus:    lib.OutcomeStatusSyntaxError,
			expErrorKind: "syntax",
		},

		"A disallowed module should be a policy violation.": {
			source:       `local t = require("table")`,
			policy:       &lib.Policy{AllowedModules: []string{}},
			expStatus:    lib.OutcomeStatusPolicyViolation,
			expErrorKind: "import",
		},

		"Extra forbidden call names should be applied.": {
			source:       `tostring(1)`,
			policy:       &lib.Policy{ForbiddenCallNames: []string{"tostring"}},
			expStatus:    lib.OutcomeStatusPolicyViolation,
			expErrorKind: "call",
		},

		"The instruction ceiling should be applied.": {
			source:       `for i = 1, 1000000 do end`,
			policy:       &lib.Policy{InstructionCeiling: 100},
			expStatus:    lib.OutcomeStatusResourceExceeded,
			expErrorKind: "instructions",
		},

		"Program errors should be runtime faults.": {
			source:       `error("nope")`,
			expStatus:    lib.OutcomeStatusRuntimeFault,
			expErrorKind: "runtime",
		},

		"An invalid policy should fail.": {
			source:   `print(1)`,
			policy:   &lib.Policy{Timeout: -1},
			expErrIs: lib.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			client := newTestClient(t, lib.EngineLua)

			out, err := client.Run(context.Background(), test.source, test.policy)

			if test.expErrIs != nil {
				assert.True(errors.Is(err, test.expErrIs), "got: %v", err)
				return
			}
			require.NoError(err)
			assert.NotEmpty(out.RunID)
			assert.Equal(test.expStatus, out.Status)
			assert.Equal(test.expOutput, out.Output)
			assert.Equal(test.expErrorKind, out.ErrorKind)
		})
	}
}

func TestRunHistory(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	ctx := context.Background()

	client := newTestClient(t, lib.EngineLua)

	ok, err := client.Run(ctx, `print(1)`, nil)
	require.NoError(err)
	ko, err := client.Run(ctx, `error("x")`, nil)
	require.NoError(err)

	runs, err := client.ListRuns(ctx, nil)
	require.NoError(err)
	require.Len(runs, 2)
	assert.Equal(ko.RunID, runs[0].ID)
	assert.Equal(ok.RunID, runs[1].ID)

	completed := lib.OutcomeStatusCompleted
	runs, err = client.ListRuns(ctx, &lib.ListRunsOpts{Status: &completed})
	require.NoError(err)
	require.Len(runs, 1)
	assert.Equal(ok.RunID, runs[0].ID)

	run, err := client.GetRun(ctx, ko.RunID)
	require.NoError(err)
	assert.Equal(lib.OutcomeStatusRuntimeFault, run.Status)
	assert.Len(run.SourceSHA256, 64)

	_, err = client.GetRun(ctx, "missing")
	assert.True(errors.Is(err, lib.ErrNotFound))
}

func TestHistoryPersistsAcrossClients(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	client, err := lib.New(ctx, lib.Config{DataDir: t.TempDir(), DBPath: dbPath, Engine: lib.EngineFake})
	require.NoError(err)
	out, err := client.Run(ctx, `anything`, nil)
	require.NoError(err)
	require.NoError(client.Close())

	client, err = lib.New(ctx, lib.Config{DataDir: t.TempDir(), DBPath: dbPath, Engine: lib.EngineFake})
	require.NoError(err)
	defer client.Close()

	run, err := client.GetRun(ctx, out.RunID)
	require.NoError(err)
	assert.Equal(t, lib.OutcomeStatusCompleted, run.Status)
}

func TestCheck(t *testing.T) {
	client := newTestClient(t, lib.EngineLua)
	ctx := context.Background()

	results, err := client.Check(ctx, `local a = 1`, nil)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, lib.CheckStatusError, r.Status, r.ID)
	}

	results, err = client.Check(ctx, `getmetatable("")`, nil)
	require.NoError(t, err)
	var hasError bool
	for _, r := range results {
		hasError = hasError || r.Status == lib.CheckStatusError
	}
	assert.True(t, hasError)
}

func TestNewInvalidEngine(t *testing.T) {
	_, err := lib.New(context.Background(), lib.Config{DataDir: t.TempDir(), Engine: "docker"})
	assert.True(t, errors.Is(err, lib.ErrNotValid))
}

func TestDefaultPolicy(t *testing.T) {
	p := lib.DefaultPolicy()
	assert.Contains(t, p.AllowedModules, "math")
	assert.Positive(t, p.Timeout)
	assert.Empty(t, p.Tools)
}
