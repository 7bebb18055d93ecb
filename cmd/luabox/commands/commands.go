package commands

import (
	"context"
	"io"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/slok/luabox/internal/conventions"
	"github.com/slok/luabox/internal/log"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"

	// EngineLua runs programs on the Lua sandbox.
	EngineLua = "lua"
	// EngineFake accepts everything and executes nothing.
	EngineFake = "fake"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug      bool
	NoLog      bool
	NoColor    bool
	LoggerType string
	DataDir    string
	DBPath     string
	PolicyPath string
	Tools      []string
	Engine     string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	defaultDataDir := filepath.Join(homedir.HomeDir(), conventions.DefaultDataDir)
	app.Flag("data-dir", "Directory for the run history, the tool workspace and the default policy.").Envar("LUABOX_DATA_DIR").Default(defaultDataDir).StringVar(&c.DataDir)
	app.Flag("db-path", "Path to the SQLite database file (defaults to the data dir one).").Envar("LUABOX_DB_PATH").StringVar(&c.DBPath)
	app.Flag("policy", "Sandbox policy YAML file (defaults to the data dir one when present).").Envar("LUABOX_POLICY").StringVar(&c.PolicyPath)
	app.Flag("tool", "Enable a host tool for the programs. Can be repeated.").StringsVar(&c.Tools)
	app.Flag("engine", "Sandbox engine.").Default(EngineLua).EnumVar(&c.Engine, EngineLua, EngineFake)

	return c
}
