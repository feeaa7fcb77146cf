// Package cli runs the ammolib binary from tests.
package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

const binary = "ammolib"

// Available reports whether the binary can be found in $PATH.
func Available() bool {
	_, err := exec.LookPath(binary)
	return err == nil
}

type Runner struct {
	args []string
	env  []string
	dir  string
}

// Command prepares ammolib with the given arguments. The environment file
// is disabled so runs do not depend on the working directory.
func Command(args ...string) *Runner {
	return &Runner{args: append(args, "--env-file", "")}
}

// WithEnv sets AMMOLIB_* variables, which replace the ones inherited.
func (r *Runner) WithEnv(env ...string) *Runner {
	r.env = append(r.env, env...)
	return r
}

func (r *Runner) InDir(dir string) *Runner {
	r.dir = dir
	return r
}

// Run waits for the command and returns its standard output.
func (r *Runner) Run(t *testing.T) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := r.exec(context.Background(), &out)
	if err := cmd.Run(); err != nil {
		return out.String(), errors.Wrapf(err, "%s %s", binary, strings.Join(r.args, " "))
	}
	return out.String(), nil
}

func (r *Runner) RunOrFail(t *testing.T) string {
	t.Helper()
	out, err := r.Run(t)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

// RunBackground starts the command and returns a function that stops it.
func (r *Runner) RunBackground(t *testing.T) context.CancelFunc {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	cmd := r.exec(ctx, struct{ io.Writer }{os.Stdout})
	if err := cmd.Start(); err != nil {
		cancel()
		t.Fatalf("%s %s: %v", binary, r.args[0], err)
	}

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	return func() {
		cancel()
		<-done
	}
}

func (r *Runner) exec(ctx context.Context, stdout io.Writer) *exec.Cmd {
	cmd := exec.CommandContext(ctx, binary, r.args...)
	cmd.Env = append(removeAppEnvs(os.Environ()), r.env...)
	if r.dir != "" {
		cmd.Dir = r.dir
	}

	// If the test is killed by a timeout, go test waits for os.Stderr and
	// os.Stdout to close while the command still holds them. Wrapping
	// forces exec to copy through a pipe instead.
	// See https://github.com/golang/go/issues/23019
	cmd.Stdout = stdout
	cmd.Stderr = struct{ io.Writer }{os.Stderr}

	return cmd
}

func removeAppEnvs(env []string) []string {
	var clean []string
	for _, value := range env {
		if !strings.HasPrefix(value, "AMMOLIB_") {
			clean = append(clean, value)
		}
	}
	return clean
}
