package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default luabox data directory name (relative to home).
	DefaultDataDir = ".luabox"
	// DBFile is the run history database filename.
	DBFile = "luabox.db"
	// WorkspaceDir is the subdirectory the list_dir tool is scoped to.
	WorkspaceDir = "workspace"
	// PolicyFile is the policy file loaded when no other one is given.
	PolicyFile = "policy.yaml"
)

// DBPath returns the run history database path inside a data directory.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, DBFile)
}

// WorkspacePath returns the tool workspace directory inside a data directory.
func WorkspacePath(dataDir string) string {
	return filepath.Join(dataDir, WorkspaceDir)
}

// PolicyPath returns the default policy file path inside a data directory.
func PolicyPath(dataDir string) string {
	return filepath.Join(dataDir, PolicyFile)
}
