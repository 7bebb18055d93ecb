package testutils

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

var multiSpaceRegex = regexp.MustCompile(" +")

// RunLuabox executes a luabox command with the given arguments string (split by spaces).
// Use RunLuaboxArgs when arguments contain spaces that should be preserved.
func RunLuabox(ctx context.Context, env []string, binary, cmdArgs string, stdin io.Reader) (stdout, stderr []byte, err error) {
	cmdArgs = strings.TrimSpace(cmdArgs)
	cmdArgs = multiSpaceRegex.ReplaceAllString(cmdArgs, " ")

	var args []string
	if cmdArgs != "" {
		args = strings.Split(cmdArgs, " ")
	}

	return RunLuaboxArgs(ctx, env, binary, args, stdin)
}

// RunLuaboxArgs executes a luabox command with pre-split arguments. Logging is
// always disabled so stdout only has the command output.
func RunLuaboxArgs(ctx context.Context, env []string, binary string, args []string, stdin io.Reader) (stdout, stderr []byte, err error) {
	var outData, errData bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = stdin
	cmd.Stdout = &outData
	cmd.Stderr = &errData

	// Custom env goes after the host one so it wins.
	newEnv := append([]string{}, os.Environ()...)
	newEnv = append(newEnv, env...)
	newEnv = append(newEnv, "LUABOX_NO_LOG=true")
	cmd.Env = newEnv

	err = cmd.Run()

	return outData.Bytes(), errData.Bytes(), err
}
