package gradle

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/depscout/depscout/pkg/errors"
)

// DefaultGrace is how long a timed-out Gradle process gets to exit after
// SIGTERM before it is killed.
const DefaultGrace = 5 * time.Second

// outputTail bounds how much captured output is attached to exit errors.
const outputTail = 4096

// Collector invokes the Gradle binary to obtain textual dependency trees.
// It treats the tool as an opaque collaborator: output is captured, never
// interpreted.
//
// The zero value uses the system "gradle" binary and DefaultGrace.
type Collector struct {
	// GradlePath is the binary used when the snapshot has no wrapper.
	// Defaults to "gradle".
	GradlePath string

	// Grace is the SIGTERM-to-SIGKILL window on timeout or cancellation.
	Grace time.Duration
}

// Collect runs the dependency report command for one descriptor and
// configuration, scoped to the snapshot directory, and returns the captured
// standard output.
//
// A repository-provided wrapper script at the snapshot root is preferred
// over the system binary. The subprocess runs in the descriptor's directory
// so that multi-module builds report the right module. The caller bounds the
// invocation through ctx; on expiry the process receives SIGTERM, then
// SIGKILL after the grace period.
func (c *Collector) Collect(ctx context.Context, snapshotDir, descriptor, configuration string) (string, error) {
	tool, err := c.resolveTool(snapshotDir)
	if err != nil {
		return "", err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(tool, "dependencies", "--configuration", configuration)
	cmd.Dir = filepath.Dir(filepath.Join(snapshotDir, filepath.FromSlash(descriptor)))
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		if stderrors.Is(err, exec.ErrNotFound) || os.IsNotExist(err) {
			return "", errors.Wrap(errors.ErrCodeToolNotFound, err, "gradle binary %q not found", tool)
		}
		return "", errors.Wrap(errors.ErrCodeInternal, err, "start gradle for %s", descriptor)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err = <-done:
	case <-ctx.Done():
		c.terminate(cmd, done)
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", errors.Wrap(errors.ErrCodeTimeout, ctx.Err(),
				"gradle dependencies timed out for %s (%s)", descriptor, configuration)
		}
		return "", ctx.Err()
	}

	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			return "", errors.Wrap(errors.ErrCodeNonZeroExit,
				&errors.ExitError{ExitCode: exitErr.ExitCode(), Output: tail(&stdout, &stderr)},
				"gradle dependencies failed for %s (%s)", descriptor, configuration)
		}
		return "", errors.Wrap(errors.ErrCodeInternal, err, "wait for gradle on %s", descriptor)
	}

	return stdout.String(), nil
}

// resolveTool prefers the repository's wrapper script, made executable
// first, and falls back to the configured system binary.
func (c *Collector) resolveTool(snapshotDir string) (string, error) {
	wrapper := filepath.Join(snapshotDir, "gradlew")
	if info, err := os.Stat(wrapper); err == nil && !info.IsDir() {
		if err := os.Chmod(wrapper, 0o755); err != nil {
			return "", errors.Wrap(errors.ErrCodeInternal, err, "make gradlew executable")
		}
		return wrapper, nil
	}
	if c.GradlePath != "" {
		return c.GradlePath, nil
	}
	return "gradle", nil
}

// terminate asks the process to exit and kills it when the grace period
// elapses without an exit.
func (c *Collector) terminate(cmd *exec.Cmd, done <-chan error) {
	grace := c.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}

	_ = cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-done:
	case <-time.After(grace):
		_ = cmd.Process.Kill()
		<-done
	}
}

// tail returns the last portion of the combined captured output.
func tail(stdout, stderr *bytes.Buffer) string {
	combined := stdout.String()
	if stderr.Len() > 0 {
		if combined != "" {
			combined += "\n"
		}
		combined += stderr.String()
	}
	if len(combined) > outputTail {
		combined = combined[len(combined)-outputTail:]
	}
	return combined
}
