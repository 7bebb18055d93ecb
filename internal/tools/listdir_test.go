package tools_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/luabox/internal/log"
	"github.com/slok/luabox/internal/tools"
)

func TestListDir(t *testing.T) {
	tests := map[string]struct {
		symlink bool
		args    []any
		exp     any
		expErr  bool
		expPerm bool
	}{
		"Listing the workspace should return its sorted entries.": {
			args: nil,
			exp:  []any{"a.txt", "b.txt", "sub/"},
		},

		"Listing a subdirectory should return its entries.": {
			args: []any{"sub"},
			exp:  []any{"c.txt"},
		},

		"Paths that are cleaned into the workspace should be allowed.": {
			args: []any{"sub/../sub"},
			exp:  []any{"c.txt"},
		},

		"Traversal out of the workspace should be denied.": {
			args:    []any{"../"},
			expErr:  true,
			expPerm: true,
		},

		"Absolute paths should be denied.": {
			args:    []any{"/etc"},
			expErr:  true,
			expPerm: true,
		},

		"Symlinks out of the workspace should be denied.": {
			symlink: true,
			args:    []any{"out"},
			expErr:  true,
			expPerm: true,
		},

		"Missing directories should fail.": {
			args:   []any{"missing"},
			expErr: true,
		},

		"Non string paths should fail.": {
			args:   []any{42.0},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			base := t.TempDir()
			root := filepath.Join(base, "workspace")
			require.NoError(os.MkdirAll(filepath.Join(root, "sub"), 0o755))
			require.NoError(os.WriteFile(filepath.Join(root, "b.txt"), nil, 0o644))
			require.NoError(os.WriteFile(filepath.Join(root, "a.txt"), nil, 0o644))
			require.NoError(os.WriteFile(filepath.Join(root, "sub", "c.txt"), nil, 0o644))
			if test.symlink {
				require.NoError(os.MkdirAll(filepath.Join(base, "secret"), 0o755))
				require.NoError(os.Symlink(filepath.Join(base, "secret"), filepath.Join(root, "out")))
			}

			tool, err := tools.NewListDir(root, log.Noop)
			require.NoError(err)

			got, err := tool.Call(context.Background(), test.args)
			if test.expErr {
				assert.Error(err)
				assert.Equal(test.expPerm, errors.Is(err, fs.ErrPermission))
				return
			}

			require.NoError(err)
			assert.Equal(test.exp, got)
		})
	}
}

func TestListDirMissingWorkspace(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	root := filepath.Join(t.TempDir(), "workspace")
	tool, err := tools.NewListDir(root, log.Noop)
	require.NoError(err)

	got, err := tool.Call(context.Background(), nil)
	require.NoError(err)
	assert.Equal([]any{}, got)

	_, err = os.Stat(root)
	assert.True(errors.Is(err, fs.ErrNotExist), "listing must not create the workspace")

	_, err = tool.Call(context.Background(), []any{"sub"})
	assert.Error(err)
}
