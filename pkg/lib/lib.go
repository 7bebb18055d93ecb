package lib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slok/luabox/internal/app/check"
	"github.com/slok/luabox/internal/app/history"
	"github.com/slok/luabox/internal/app/run"
	"github.com/slok/luabox/internal/conventions"
	"github.com/slok/luabox/internal/log"
	"github.com/slok/luabox/internal/model"
	"github.com/slok/luabox/internal/sandbox"
	"github.com/slok/luabox/internal/sandbox/fake"
	"github.com/slok/luabox/internal/sandbox/lua"
	"github.com/slok/luabox/internal/storage"
	"github.com/slok/luabox/internal/storage/memory"
	"github.com/slok/luabox/internal/storage/sqlite"
)

// Config configures the SDK client.
//
// All fields are optional. An empty Config{} runs programs on the Lua engine
// and records the history in ~/.luabox/luabox.db.
type Config struct {
	// DataDir is the base directory for luabox data.
	// Default: ~/.luabox.
	DataDir string

	// DBPath is the SQLite history database path.
	// Default: <DataDir>/luabox.db.
	DBPath string

	// DisableHistory keeps the run history in memory, nothing is written to disk.
	DisableHistory bool

	// Engine selects the sandbox engine. Default: [EngineLua].
	Engine EngineType

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not get user home dir: %w", err)
		}
		c.DataDir = filepath.Join(home, conventions.DefaultDataDir)
	}

	if c.DBPath == "" {
		c.DBPath = conventions.DBPath(c.DataDir)
	}

	if c.Engine == "" {
		c.Engine = EngineLua
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the SDK entry point to run untrusted programs.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use, every run gets its own sandbox.
type Client struct {
	runSvc   *run.Service
	checkSvc *check.Service
	histSvc  *history.Service
	closeFn  func() error
}

// New creates a new SDK client.
//
// The caller must call [Client.Close] when done to release the database
// connection:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	eng, err := newEngine(cfg.Engine, cfg.Logger)
	if err != nil {
		return nil, mapError(err)
	}

	var repo storage.Repository
	closeFn := func() error { return nil }
	if cfg.DisableHistory {
		repo, err = memory.NewRepository(memory.RepositoryConfig{Logger: cfg.Logger})
		if err != nil {
			return nil, fmt.Errorf("could not create repository: %w", err)
		}
	} else {
		sqliteRepo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
			DBPath: cfg.DBPath,
			Logger: cfg.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create repository: %w", err)
		}
		repo = sqliteRepo
		closeFn = sqliteRepo.Close
	}

	runSvc, err := run.NewService(run.ServiceConfig{Engine: eng, Repository: repo, Logger: cfg.Logger})
	if err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("could not create run service: %w", err)
	}
	checkSvc, err := check.NewService(check.ServiceConfig{Engine: eng, Logger: cfg.Logger})
	if err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("could not create check service: %w", err)
	}
	histSvc, err := history.NewService(history.ServiceConfig{Repository: repo, Logger: cfg.Logger})
	if err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("could not create history service: %w", err)
	}

	return &Client{
		runSvc:   runSvc,
		checkSvc: checkSvc,
		histSvc:  histSvc,
		closeFn:  closeFn,
	}, nil
}

func newEngine(t EngineType, logger log.Logger) (sandbox.Engine, error) {
	switch t {
	case EngineLua:
		return lua.NewEngine(lua.EngineConfig{Logger: logger})
	case EngineFake:
		return fake.NewEngine(fake.EngineConfig{Logger: logger})
	default:
		return nil, fmt.Errorf("unsupported engine type: %s: %w", t, model.ErrNotValid)
	}
}

// Close releases resources held by the client, including the database connection.
// After Close returns, the client must not be used.
func (c *Client) Close() error {
	return c.closeFn()
}

// Run validates and executes a program. A nil policy uses [DefaultPolicy].
//
// Everything the program does is reported in the [Outcome], including
// rejections and resource ceilings. The error is only for invalid policies or
// when ctx is cancelled before the run finishes.
func (c *Client) Run(ctx context.Context, source string, policy *Policy) (*Outcome, error) {
	p, err := toInternalPolicy(policy)
	if err != nil {
		return nil, mapError(fmt.Errorf("invalid policy: %w", err))
	}

	o, err := c.runSvc.Run(ctx, run.Request{Source: source, Policy: p})
	if err != nil {
		return nil, mapError(err)
	}

	out := fromInternalOutcome(*o)
	return &out, nil
}

// Check validates a program without executing it. A nil policy uses [DefaultPolicy].
func (c *Client) Check(ctx context.Context, source string, policy *Policy) ([]CheckResult, error) {
	p, err := toInternalPolicy(policy)
	if err != nil {
		return nil, mapError(fmt.Errorf("invalid policy: %w", err))
	}

	results, err := c.checkSvc.Run(ctx, check.Request{Source: source, Policy: p})
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalCheckResults(results), nil
}

// ListRuns returns the recorded runs, newest first.
func (c *Client) ListRuns(ctx context.Context, opts *ListRunsOpts) ([]RunRecord, error) {
	req := history.ListRequest{}
	if opts != nil {
		req.Limit = opts.Limit
		if opts.Status != nil {
			s := model.OutcomeStatus(*opts.Status)
			req.StatusFilter = &s
		}
	}

	runs, err := c.histSvc.List(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalRunRecordList(runs), nil
}

// GetRun returns a recorded run by ID. Returns [ErrNotFound] if it doesn't exist.
func (c *Client) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	r, err := c.histSvc.Get(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}

	rec := fromInternalRunRecord(*r)
	return &rec, nil
}
