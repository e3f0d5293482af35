package testutils

import (
	"bytes"
	"context"
	"os"
	"os/exec"

	"github.com/rainpipe/pdfwatch/internal/conventions"
)

// Binary runs a built pdfwatch binary as a child process.
type Binary struct {
	Path string
	// Env entries appended to the current process environment.
	Env []string
	// Quiet disables the binary logger through its environment.
	Quiet bool
}

// Run executes the binary with args and waits for it to exit. The captured
// output is returned even when the exit code is not zero.
func (b Binary) Run(ctx context.Context, args ...string) (stdout, stderr []byte, err error) {
	var outBuf, errBuf bytes.Buffer

	cmd := exec.CommandContext(ctx, b.Path, args...)
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	cmd.Env = b.environ()

	err = cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// environ returns the child environment, later entries win on duplicated keys.
func (b Binary) environ() []string {
	env := make([]string, 0, len(os.Environ())+len(b.Env)+1)
	env = append(env, os.Environ()...)
	env = append(env, b.Env...)
	if b.Quiet {
		env = append(env, conventions.EnvarPrefix+"_NO_LOG=true")
	}
	return env
}
