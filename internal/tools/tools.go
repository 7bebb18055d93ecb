// Package tools has the safe host operations that can be exposed to guest programs.
package tools

import (
	"fmt"

	"github.com/slok/luabox/internal/log"
	"github.com/slok/luabox/internal/model"
)

// Config is the configuration of the default tool set.
type Config struct {
	// WorkspaceDir is the only directory the list_dir tool can read.
	WorkspaceDir string
	Logger       log.Logger
}

func (c *Config) defaults() error {
	if c.WorkspaceDir == "" {
		return fmt.Errorf("workspace directory is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// NewDefaultToolSet returns the tool set with all the tools of this package.
// Tools that can't be used on this host are left out.
func NewDefaultToolSet(cfg Config) (model.ToolSet, error) {
	if err := cfg.defaults(); err != nil {
		return model.ToolSet{}, fmt.Errorf("invalid config: %w", err)
	}

	listDir, err := NewListDir(cfg.WorkspaceDir, cfg.Logger)
	if err != nil {
		return model.ToolSet{}, err
	}
	tools := []model.Tool{listDir, NewSleep(0)}

	stats, err := NewSystemStats(cfg.Logger)
	if err != nil {
		cfg.Logger.Warningf("system_stats tool disabled: %s", err)
	} else {
		tools = append(tools, stats)
	}

	return model.NewToolSet(tools...)
}

func stringArg(args []any, i int, name, def string) (string, error) {
	if len(args) <= i || args[i] == nil {
		return def, nil
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string: %w", name, model.ErrNotValid)
	}
	return s, nil
}

func numberArg(args []any, i int, name string) (float64, error) {
	if len(args) <= i || args[i] == nil {
		return 0, fmt.Errorf("argument %q is required: %w", name, model.ErrNotValid)
	}
	n, ok := args[i].(float64)
	if !ok {
		return 0, fmt.Errorf("argument %q must be a number: %w", name, model.ErrNotValid)
	}
	return n, nil
}
