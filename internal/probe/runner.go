// Package probe executes service health-check commands against per-team
// environments. Checks are arbitrary shell commands supplied by the game
// fixtures; the runner isolates them from the server's own environment and
// bounds each one with a hard wall-clock timeout.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds one probe; a hung check costs at most this much of
// the tick budget.
const DefaultTimeout = 5 * time.Second

// fallbackPath seeds PATH when the server itself has none.
const fallbackPath = "/usr/bin:/bin:/usr/sbin:/sbin"

// Result is the outcome of one probe. Up is true iff the command exited
// zero within the timeout. A timeout is a normal down result with Stderr
// set to "timeout", not an error.
type Result struct {
	Up     bool
	Stdout string
	Stderr string
}

// Runner executes probe commands with a fixed working directory and
// timeout. The zero value is not usable; construct with NewRunner.
type Runner struct {
	// ResourceDir is the working directory commands run in.
	ResourceDir string
	// Timeout is the wall-clock budget per probe.
	Timeout time.Duration
}

// NewRunner creates a Runner with the default probe timeout.
func NewRunner(resourceDir string) *Runner {
	return &Runner{ResourceDir: resourceDir, Timeout: DefaultTimeout}
}

// Check runs one command under `bash -c` with a cleared environment. The
// child sees only PATH (the parent's, or a fixed fallback) and the given
// KEY=VALUE pairs in order; for duplicate keys the last pair wins. A
// non-zero exit or a timeout is a normal down Result. A non-nil error
// means the probe could not be spawned at all.
func (r *Runner) Check(ctx context.Context, command string, env []string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = r.ResourceDir

	path := os.Getenv("PATH")
	if path == "" {
		path = fallbackPath
	}
	cmd.Env = append([]string{"PATH=" + path}, env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		zerolog.Ctx(ctx).Debug().Str("command", command).Msg("probe timed out")
		return Result{Up: false, Stderr: "timeout"}, nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{Up: false, Stdout: stdout.String(), Stderr: stderr.String()}, nil
		}
		return Result{}, fmt.Errorf("probe: spawn failed: %w", err)
	}
	return Result{Up: true, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}
