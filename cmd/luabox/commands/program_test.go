package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/luabox/internal/log"
	"github.com/slok/luabox/internal/model"
	"github.com/slok/luabox/internal/tools"
)

func TestReadSource(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "prog.lua")
	require.NoError(t, os.WriteFile(file, []byte("print(1)"), 0o644))

	tests := map[string]struct {
		path      string
		stdin     string
		expSource string
		expErr    bool
	}{
		"A file should be read.": {
			path:      file,
			expSource: "print(1)",
		},
		"Dash should read stdin.": {
			path:      "-",
			stdin:     "print(2)",
			expSource: "print(2)",
		},
		"A missing file should fail.": {
			path:   filepath.Join(dir, "missing.lua"),
			expErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			source, err := readSource(strings.NewReader(tc.stdin), tc.path)

			if tc.expErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expSource, source)
		})
	}
}

func newTestToolSet(t *testing.T, dir string) model.ToolSet {
	t.Helper()
	listDir, err := tools.NewListDir(dir, log.Noop)
	require.NoError(t, err)
	ts, err := model.NewToolSet(listDir, tools.NewSleep(0))
	require.NoError(t, err)
	return ts
}

func TestLoadPolicy(t *testing.T) {
	tests := map[string]struct {
		dataDirPolicy string
		flagPolicy    string
		tools         []string
		expTimeout    time.Duration
		expTools      []string
		expErr        bool
	}{
		"Without policy files the default policy should be used.": {
			expTimeout: model.DefaultTimeout,
		},

		"The data dir policy should be loaded when present.": {
			dataDirPolicy: "timeout: 3s\n",
			expTimeout:    3 * time.Second,
		},

		"The flag policy should win over the data dir one.": {
			dataDirPolicy: "timeout: 3s\n",
			flagPolicy:    "timeout: 4s\n",
			expTimeout:    4 * time.Second,
		},

		"Flag tools should be added to the policy ones.": {
			dataDirPolicy: "tools: [list_dir]\n",
			tools:         []string{"sleep", "list_dir", "sleep"},
			expTimeout:    model.DefaultTimeout,
			expTools:      []string{"list_dir", "sleep"},
		},

		"Unknown flag tools should fail.": {
			tools:  []string{"rm_rf"},
			expErr: true,
		},

		"An invalid policy file should fail.": {
			dataDirPolicy: "timeout: soon\n",
			expErr:        true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			dataDir := t.TempDir()
			root := RootCommand{DataDir: dataDir, Tools: tc.tools, Logger: log.Noop}
			if tc.dataDirPolicy != "" {
				require.NoError(os.WriteFile(filepath.Join(dataDir, "policy.yaml"), []byte(tc.dataDirPolicy), 0o644))
			}
			if tc.flagPolicy != "" {
				root.PolicyPath = filepath.Join(t.TempDir(), "custom.yaml")
				require.NoError(os.WriteFile(root.PolicyPath, []byte(tc.flagPolicy), 0o644))
			}

			policy, err := root.loadPolicy(context.TODO(), newTestToolSet(t, t.TempDir()))

			if tc.expErr {
				assert.Error(err)
				return
			}
			require.NoError(err)
			assert.Equal(tc.expTimeout, policy.Timeout)
			assert.Equal(tc.expTools, policy.Tools.Names())
		})
	}
}

func TestDBPath(t *testing.T) {
	root := RootCommand{DataDir: "/data"}
	assert.Equal(t, "/data/luabox.db", root.dbPath())

	root.DBPath = "/other/runs.db"
	assert.Equal(t, "/other/runs.db", root.dbPath())
}

func TestParseOutcomeStatus(t *testing.T) {
	status, err := parseOutcomeStatus("Timed_Out")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeStatusTimedOut, status)

	_, err = parseOutcomeStatus("exploded")
	assert.Error(t, err)
}
