package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/slok/luabox/internal/conventions"
	"github.com/slok/luabox/internal/model"
	"github.com/slok/luabox/internal/sandbox"
	"github.com/slok/luabox/internal/sandbox/fake"
	"github.com/slok/luabox/internal/sandbox/lua"
	storageio "github.com/slok/luabox/internal/storage/io"
	"github.com/slok/luabox/internal/storage/sqlite"
	"github.com/slok/luabox/internal/tools"
)

// stdinSource is the file argument that reads the program from the standard input.
const stdinSource = "-"

// readSource reads a program from a file or from stdin.
func readSource(stdin io.Reader, path string) (string, error) {
	if path == stdinSource {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("could not read program from stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("could not read program: %w", err)
	}
	return string(data), nil
}

func (r RootCommand) dbPath() string {
	if r.DBPath != "" {
		return r.DBPath
	}
	return conventions.DBPath(r.DataDir)
}

func (r RootCommand) newRepository(ctx context.Context) (*sqlite.Repository, error) {
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: r.dbPath(),
		Logger: r.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}
	return repo, nil
}

func (r RootCommand) newToolSet() (model.ToolSet, error) {
	ts, err := tools.NewDefaultToolSet(tools.Config{
		WorkspaceDir: conventions.WorkspacePath(r.DataDir),
		Logger:       r.Logger,
	})
	if err != nil {
		return model.ToolSet{}, fmt.Errorf("could not create tools: %w", err)
	}
	return ts, nil
}

func (r RootCommand) newEngine() (sandbox.Engine, error) {
	switch r.Engine {
	case EngineFake:
		return fake.NewEngine(fake.EngineConfig{Logger: r.Logger})
	default:
		return lua.NewEngine(lua.EngineConfig{Logger: r.Logger})
	}
}

// policyFile returns the policy file to load, empty when the default policy
// should be used.
func (r RootCommand) policyFile() (string, error) {
	if r.PolicyPath != "" {
		return r.PolicyPath, nil
	}

	path := conventions.PolicyPath(r.DataDir)
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return path, nil
	case errors.Is(err, os.ErrNotExist):
		return "", nil
	default:
		return "", fmt.Errorf("could not check policy file: %w", err)
	}
}

// loadPolicy returns the effective policy with the tools enabled by flag added.
func (r RootCommand) loadPolicy(ctx context.Context, available model.ToolSet) (model.SandboxPolicy, error) {
	path, err := r.policyFile()
	if err != nil {
		return model.SandboxPolicy{}, err
	}

	policy := model.DefaultSandboxPolicy()
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return model.SandboxPolicy{}, fmt.Errorf("invalid policy path: %w", err)
		}
		repo := storageio.NewPolicyYAMLRepository(os.DirFS(filepath.Dir(abs)), available)
		policy, err = repo.GetPolicy(ctx, filepath.Base(abs))
		if err != nil {
			return model.SandboxPolicy{}, fmt.Errorf("could not load policy %s: %w", path, err)
		}
		r.Logger.Debugf("Policy loaded from %s", abs)
	}

	policy.Tools, err = enableTools(policy.Tools, available, r.Tools)
	if err != nil {
		return model.SandboxPolicy{}, err
	}

	return policy, nil
}

// enableTools adds the named tools of the available set to the enabled ones.
func enableTools(enabled, available model.ToolSet, names []string) (model.ToolSet, error) {
	if len(names) == 0 {
		return enabled, nil
	}

	var ts []model.Tool
	seen := map[string]bool{}
	for _, name := range enabled.Names() {
		t, _ := enabled.Get(name)
		ts = append(ts, t)
		seen[name] = true
	}
	for _, name := range names {
		if seen[name] {
			continue
		}
		t, ok := available.Get(name)
		if !ok {
			return model.ToolSet{}, fmt.Errorf("tool %q: %w", name, model.ErrNotFound)
		}
		ts = append(ts, t)
		seen[name] = true
	}

	return model.NewToolSet(ts...)
}
