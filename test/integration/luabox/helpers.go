package luabox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/slok/luabox/test/integration/testutils"
)

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	Binary string
}

func (c *Config) defaults() error {
	if c.Binary == "" {
		c.Binary = "luabox"
	}

	// go test changes the CWD to the test package directory.
	if !filepath.IsAbs(c.Binary) {
		return fmt.Errorf("LUABOX_INTEGRATION_BINARY must be an absolute path, got %q", c.Binary)
	}
	if _, err := os.Stat(c.Binary); err != nil {
		return fmt.Errorf("luabox binary not found at %q: %w", c.Binary, err)
	}

	return nil
}

// NewConfig loads integration test configuration from environment variables.
// If the config is invalid or the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation = "LUABOX_INTEGRATION"
		envBinary     = "LUABOX_INTEGRATION_BINARY"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{Binary: os.Getenv(envBinary)}
	if err := c.defaults(); err != nil {
		t.Skipf("Skipping due to invalid config: %s", err)
	}

	return c
}

// RunCmd runs a luabox command isolated on a data dir.
func RunCmd(ctx context.Context, config Config, dataDir, cmdArgs string) (stdout, stderr []byte, err error) {
	args := fmt.Sprintf("--data-dir %s %s", dataDir, cmdArgs)
	return testutils.RunLuabox(ctx, nil, config.Binary, args, nil)
}

// RunProgram runs a program read from stdin with JSON output.
func RunProgram(ctx context.Context, config Config, dataDir, source string, extraArgs ...string) (stdout, stderr []byte, err error) {
	args := []string{"--data-dir", dataDir}
	args = append(args, extraArgs...)
	args = append(args, "run", "--format", "json", "-")
	return testutils.RunLuaboxArgs(ctx, nil, config.Binary, args, strings.NewReader(source))
}

// CheckProgram checks a program read from stdin with JSON output.
func CheckProgram(ctx context.Context, config Config, dataDir, source string) (stdout, stderr []byte, err error) {
	args := []string{"--data-dir", dataDir, "check", "--format", "json", "-"}
	return testutils.RunLuaboxArgs(ctx, nil, config.Binary, args, strings.NewReader(source))
}

// WritePolicy writes the default policy file of a data dir.
func WritePolicy(t *testing.T, dataDir, policy string) {
	t.Helper()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("could not create data dir: %s", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "policy.yaml"), []byte(policy), 0o644); err != nil {
		t.Fatalf("could not write policy: %s", err)
	}
}
