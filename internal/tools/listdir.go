package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/slok/luabox/internal/log"
)

// ListDir lists the entries of a directory inside a workspace directory.
type ListDir struct {
	root   string
	logger log.Logger
}

// NewListDir returns a new list_dir tool scoped to root.
func NewListDir(root string, logger log.Logger) (*ListDir, error) {
	if logger == nil {
		logger = log.Noop
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("could not resolve workspace %q: %w", root, err)
	}

	return &ListDir{
		root:   abs,
		logger: logger.WithValues(log.Kv{"svc": "tools.ListDir"}),
	}, nil
}

func (l *ListDir) Name() string { return "list_dir" }
func (l *ListDir) Description() string {
	return "Lists the entry names of a directory relative to the workspace"
}

// Call receives an optional relative path (default ".") and returns the sorted entry names.
// Directories end with "/".
func (l *ListDir) Call(ctx context.Context, args []any) (any, error) {
	sub, err := stringArg(args, 0, "path", ".")
	if err != nil {
		return nil, err
	}

	path, err := l.resolve(sub)
	if err != nil {
		l.logger.WithCtxValues(ctx).Warningf("denied listing of %q", sub)
		return nil, err
	}

	entries, err := os.ReadDir(path)
	if errors.Is(err, fs.ErrNotExist) && path == l.root {
		// A workspace that was never created is empty.
		return []any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not list %q: %w", sub, err)
	}

	names := make([]any, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}

	return names, nil
}

// resolve returns the absolute path of sub, it must not leave the workspace.
func (l *ListDir) resolve(sub string) (string, error) {
	if filepath.IsAbs(sub) {
		return "", fmt.Errorf("absolute paths are not allowed: %w", fs.ErrPermission)
	}

	path := filepath.Join(l.root, sub)
	rel, err := filepath.Rel(l.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path is outside the workspace: %w", fs.ErrPermission)
	}

	// Symlinks could point outside.
	if real, err := filepath.EvalSymlinks(path); err == nil {
		realRoot, err := filepath.EvalSymlinks(l.root)
		if err != nil {
			return "", fmt.Errorf("could not resolve workspace: %w", err)
		}
		rel, err := filepath.Rel(realRoot, real)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("path is outside the workspace: %w", fs.ErrPermission)
		}
	}

	return path, nil
}
