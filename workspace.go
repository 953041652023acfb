package url2pdf

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alnah/go-url2pdf/internal/fileutil"
	"github.com/alnah/go-url2pdf/internal/process"
)

// Temp layout constants.
//
//	<root>/url2pdf-run-XXXX/owner.json   who holds this run directory
//	<root>/url2pdf-run-XXXX/jobs/<id>-*/output.pdf
const (
	runDirPrefix   = "url2pdf-run-"
	ownerFileName  = "owner.json"
	jobsDirName    = "jobs"
	outputFileName = "output.pdf"
	jobDirPerm     = 0o700

	// ownerlessGrace keeps a run directory whose owner file is missing or
	// unreadable, as happens between its creation and the owner write.
	ownerlessGrace = time.Minute
)

// instanceID tells this process's run directories apart from those of an
// earlier process that happened to have the same pid.
var instanceID = uuid.NewString()

type runOwner struct {
	PID       int    `json:"pid"`
	Instance  string `json:"instance"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

// Workspace hands out one private temp directory per job. Each Workspace
// owns a run directory under root, so several processes can share root.
type Workspace struct {
	root string
	run  string
	dir  string

	closeOnce sync.Once
	closeErr  error
}

// NewWorkspace creates a run directory under dir and records this process
// as its owner. An empty dir uses os.TempDir(). Call Close to remove it.
func NewWorkspace(dir string) (*Workspace, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving workspace %s: %v", ErrInternal, dir, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("%w: creating workspace %s: %v", ErrInternal, abs, err)
	}

	run, err := os.MkdirTemp(abs, runDirPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("%w: creating run directory: %v", ErrInternal, err)
	}
	if err := initRunDir(run); err != nil {
		_ = os.RemoveAll(run)
		return nil, fmt.Errorf("%w: initializing run directory %s: %v", ErrInternal, run, err)
	}

	return &Workspace{root: abs, run: run, dir: filepath.Join(run, jobsDirName)}, nil
}

func initRunDir(run string) error {
	if err := os.Chmod(run, jobDirPerm); err != nil {
		return err
	}
	data, err := json.Marshal(runOwner{
		PID:       os.Getpid(),
		Instance:  instanceID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(run, ownerFileName), data, 0o600); err != nil {
		return err
	}
	return os.Mkdir(filepath.Join(run, jobsDirName), jobDirPerm)
}

// Root returns the shared directory the run directory lives in.
func (w *Workspace) Root() string {
	return w.root
}

// Dir returns the directory holding this workspace's job directories.
func (w *Workspace) Dir() string {
	return w.dir
}

// Acquire creates a fresh directory for jobID and returns the Artifact
// whose Path the renderer must write to.
func (w *Workspace) Acquire(jobID string) (*Artifact, error) {
	if err := fileutil.ValidateComponent(jobID); err != nil {
		return nil, fmt.Errorf("%w: job id: %v", ErrInternal, err)
	}

	dir, err := os.MkdirTemp(w.dir, jobID+"-*")
	if err != nil {
		return nil, fmt.Errorf("%w: creating job directory: %v", ErrInternal, err)
	}
	if err := os.Chmod(dir, jobDirPerm); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: securing job directory: %v", ErrInternal, err)
	}

	return &Artifact{dir: dir, path: filepath.Join(dir, outputFileName)}, nil
}

// Close removes the run directory and anything still in it.
func (w *Workspace) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = os.RemoveAll(w.run)
	})
	return w.closeErr
}

// Sweep removes run directories under Root whose owning process is gone.
// Directories owned by a live process, or by another host, are kept.
// It returns how many were removed.
func (w *Workspace) Sweep() (int, error) {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return 0, fmt.Errorf("%w: reading workspace: %v", ErrInternal, err)
	}

	host := hostnameOrUnknown()
	var errs []error
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), runDirPrefix) {
			continue
		}
		path := filepath.Join(w.root, e.Name())
		if path == w.run || !orphaned(path, host) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// orphaned reports whether the run directory at path has lost its owner.
func orphaned(path, host string) bool {
	var owner runOwner
	data, err := os.ReadFile(filepath.Join(path, ownerFileName))
	if err == nil {
		err = json.Unmarshal(data, &owner)
	}
	if err != nil || owner.PID <= 0 {
		info, statErr := os.Stat(path)
		return statErr == nil && time.Since(info.ModTime()) > ownerlessGrace
	}

	if owner.Hostname != host {
		return false
	}
	if owner.PID == os.Getpid() {
		return owner.Instance != instanceID
	}
	return !process.Alive(owner.PID)
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}

// Artifact is the output of one job, bound to its private directory.
type Artifact struct {
	dir  string
	path string

	once       sync.Once
	releaseErr error
}

// Path is where the renderer writes the PDF.
func (a *Artifact) Path() string {
	return a.path
}

// Size returns the output size in bytes.
func (a *Artifact) Size() (int64, error) {
	info, err := os.Stat(a.path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Open opens the finished PDF for reading.
func (a *Artifact) Open() (*os.File, error) {
	return os.Open(a.path)
}

// Verify checks that the renderer left a non-empty regular file.
func (a *Artifact) Verify() error {
	return verifyOutput(a.path)
}

// Release deletes the artifact's directory. Safe to call more than once;
// every call returns the first result.
func (a *Artifact) Release() error {
	a.once.Do(func() {
		a.releaseErr = os.RemoveAll(a.dir)
	})
	return a.releaseErr
}
