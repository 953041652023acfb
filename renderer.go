package url2pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/alnah/go-url2pdf/internal/process"
)

// Renderer turns a URL into a PDF written at outputPath.
type Renderer interface {
	Render(ctx context.Context, sourceURL, outputPath string) error
	Close() error
}

// Compile-time interface checks
var (
	_ Renderer = (*ProcessRenderer)(nil)
	_ Renderer = (*ChromeRenderer)(nil)
)

// Renderer defaults.
const (
	DefaultRendererBinary = "electron-pdf"
	DefaultKillGrace      = 2 * time.Second
	stderrTailSize        = 4 << 10
)

// RenderError describes a renderer that exited unsuccessfully.
// It unwraps to ErrRenderFailed. Stderr is for logs only.
type RenderError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *RenderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", ErrRenderFailed, e.Err)
	}
	return fmt.Sprintf("%v: exit code %d", ErrRenderFailed, e.ExitCode)
}

func (e *RenderError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrRenderFailed, e.Err}
	}
	return []error{ErrRenderFailed}
}

// ProcessRenderer runs an external renderer binary once per job:
//
//	<binary> [args...] <sourceURL> <outputPath>
//
// Arguments are passed as a vector; no shell is involved.
type ProcessRenderer struct {
	path      string
	args      []string
	killGrace time.Duration
}

// NewProcessRenderer resolves binary on PATH (or as a path) and returns a
// renderer that prepends args to every invocation.
func NewProcessRenderer(binary string, args []string, killGrace time.Duration) (*ProcessRenderer, error) {
	if binary == "" {
		binary = DefaultRendererBinary
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRendererNotFound, binary, err)
	}
	if killGrace <= 0 {
		killGrace = DefaultKillGrace
	}
	return &ProcessRenderer{
		path:      path,
		args:      slices.Clone(args),
		killGrace: killGrace,
	}, nil
}

// Path returns the resolved renderer binary.
func (r *ProcessRenderer) Path() string {
	return r.path
}

// Render launches the renderer and waits for it. When ctx ends first the
// process group gets SIGTERM, then SIGKILL after the grace period. No
// process of the group survives the call.
func (r *ProcessRenderer) Render(ctx context.Context, sourceURL, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return contextError(err)
	}

	argv := append(slices.Clone(r.args), sourceURL, outputPath)
	// #nosec G204 -- binary comes from config, arguments are validated and never reach a shell
	cmd := exec.CommandContext(ctx, r.path, argv...)
	process.Isolate(cmd)
	cmd.Cancel = func() error {
		return process.TerminateGroup(cmd.Process.Pid)
	}
	cmd.WaitDelay = r.killGrace

	stderr := &tailBuffer{max: stderrTailSize}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: starting renderer: %v", ErrInternal, err)
	}
	pid := cmd.Process.Pid

	waitErr := cmd.Wait()

	// Children may outlive the leader; reap the whole group.
	process.KillProcessGroup(pid)

	if err := ctx.Err(); err != nil {
		return contextError(err)
	}

	// ErrWaitDelay alone means the leader exited 0 but a backgrounded child
	// kept stderr open, so Wait gave up on the pipe after killGrace. The
	// child is gone by now and the output is judged on its own.
	if waitErr != nil && !errors.Is(waitErr, exec.ErrWaitDelay) {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return &RenderError{
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderr.String(),
			}
		}
		return fmt.Errorf("%w: waiting for renderer: %v", ErrInternal, waitErr)
	}

	if err := verifyOutput(outputPath); err != nil {
		return &RenderError{Stderr: stderr.String(), Err: err}
	}
	return nil
}

// Close is a no-op; each render owns its own process.
func (r *ProcessRenderer) Close() error {
	return nil
}

// contextError maps a context error onto the render taxonomy.
func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrRenderTimedOut, err)
	}
	return fmt.Errorf("%w: %v", ErrCanceled, err)
}

// verifyOutput checks that a renderer left a non-empty regular file.
func verifyOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrEmptyOutput
		}
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		return ErrEmptyOutput
	}
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
