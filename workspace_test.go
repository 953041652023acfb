package url2pdf

// Notes:
// - Sweep's ownership checks are exercised with hand-written owner files;
//   a dead owner is a pid no process can hold.
// - The ownerless grace period is tested by backdating the directory
//   with os.Chtimes rather than by waiting.
// These are acceptable gaps: we test observable behavior, not implementation details.

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// deadPID is above any pid limit a kernel hands out.
const deadPID = 999999999

func openWorkspace(t *testing.T, root string) *Workspace {
	t.Helper()

	ws, err := NewWorkspace(root)
	if err != nil {
		t.Fatalf("NewWorkspace() error = %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

// writeRunDir fakes a run directory left by some process. A nil owner
// leaves it without an owner file.
func writeRunDir(t *testing.T, root, name string, owner *runOwner, age time.Duration) string {
	t.Helper()

	dir := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Join(dir, jobsDirName, "job-1"), 0o700); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if owner != nil {
		data, err := json.Marshal(owner)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, ownerFileName), data, 0o600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
	if age > 0 {
		old := time.Now().Add(-age)
		if err := os.Chtimes(dir, old, old); err != nil {
			t.Fatalf("Chtimes() error = %v", err)
		}
	}
	return dir
}

func TestWorkspace_AcquireRelease(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	ws := openWorkspace(t, root)

	a, err := ws.Acquire("job1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	b, err := ws.Acquire("job1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if a.Path() == b.Path() {
		t.Fatalf("same job ID produced the same path %q", a.Path())
	}
	for _, art := range []*Artifact{a, b} {
		if !strings.HasPrefix(art.Path(), root+string(filepath.Separator)) {
			t.Errorf("Path() = %q, want under %q", art.Path(), root)
		}
		if filepath.Base(art.Path()) != outputFileName {
			t.Errorf("Path() = %q, want file %s", art.Path(), outputFileName)
		}
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Dir(a.Path()))
		if err != nil {
			t.Fatalf("Stat() error = %v", err)
		}
		if perm := info.Mode().Perm(); perm != jobDirPerm {
			t.Errorf("job dir perm = %o, want %o", perm, jobDirPerm)
		}
	}

	if err := os.WriteFile(a.Path(), []byte("%PDF-1.4"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := a.Verify(); err != nil {
		t.Errorf("Verify() = %v, want nil", err)
	}
	if size, err := a.Size(); err != nil || size != 8 {
		t.Errorf("Size() = %d, %v, want 8", size, err)
	}
	if err := b.Verify(); !errors.Is(err, ErrEmptyOutput) {
		t.Errorf("Verify() on missing output = %v, want ErrEmptyOutput", err)
	}

	for _, art := range []*Artifact{a, b} {
		if err := art.Release(); err != nil {
			t.Errorf("Release() error = %v", err)
		}
		if err := art.Release(); err != nil {
			t.Errorf("second Release() error = %v", err)
		}
	}

	entries, err := os.ReadDir(ws.Dir())
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("workspace has %d entries after release, want 0", len(entries))
	}
}

func TestWorkspace_AcquireRejectsPathIDs(t *testing.T) {
	t.Parallel()

	ws := openWorkspace(t, t.TempDir())

	for _, id := range []string{"", "..", "a/b", `a\b`} {
		if _, err := ws.Acquire(id); !errors.Is(err, ErrInternal) {
			t.Errorf("Acquire(%q) = %v, want ErrInternal", id, err)
		}
	}
}

// ---------------------------------------------------------------------------
// TestWorkspace_Sweep - Run directory ownership
// ---------------------------------------------------------------------------

func TestWorkspace_Sweep(t *testing.T) {
	t.Parallel()

	host := hostnameOrUnknown()
	now := time.Now().UTC().Format(time.RFC3339)
	root := t.TempDir()

	tests := []struct {
		name        string
		owner       *runOwner
		age         time.Duration
		wantRemoved bool
	}{
		{
			name:        "url2pdf-run-dead",
			owner:       &runOwner{PID: deadPID, Instance: "gone", CreatedAt: now, Hostname: host},
			wantRemoved: true,
		},
		{
			name:  "url2pdf-run-live",
			owner: &runOwner{PID: os.Getppid(), Instance: "parent", CreatedAt: now, Hostname: host},
		},
		{
			name:  "url2pdf-run-foreign",
			owner: &runOwner{PID: deadPID, Instance: "elsewhere", CreatedAt: now, Hostname: "other-host.invalid"},
		},
		{
			name:        "url2pdf-run-earlier-self",
			owner:       &runOwner{PID: os.Getpid(), Instance: "previous", CreatedAt: now, Hostname: host},
			wantRemoved: true,
		},
		{
			name: "url2pdf-run-fresh-ownerless",
		},
		{
			name:        "url2pdf-run-old-ownerless",
			age:         2 * ownerlessGrace,
			wantRemoved: true,
		},
		{
			name:  "url2pdf-other",
			owner: &runOwner{PID: deadPID, Hostname: host},
			age:   2 * ownerlessGrace,
		},
	}

	paths := make(map[string]string, len(tests))
	for _, tt := range tests {
		paths[tt.name] = writeRunDir(t, root, tt.name, tt.owner, tt.age)
	}
	if err := os.WriteFile(filepath.Join(root, "url2pdf-run-file"), nil, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	ws := openWorkspace(t, root)
	n, err := ws.Sweep()
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Sweep() removed %d, want 3", n)
	}

	for _, tt := range tests {
		_, err := os.Stat(paths[tt.name])
		if removed := errors.Is(err, os.ErrNotExist); removed != tt.wantRemoved {
			t.Errorf("%s removed = %v, want %v", tt.name, removed, tt.wantRemoved)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "url2pdf-run-file")); err != nil {
		t.Errorf("plain file was touched: %v", err)
	}
	if _, err := os.Stat(ws.Dir()); err != nil {
		t.Errorf("Sweep() removed its own run directory: %v", err)
	}
}

func TestWorkspace_SharedRoot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	first := openWorkspace(t, root)

	a, err := first.Acquire("inflight")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer a.Release()

	// A second server starting on the same directory must leave the
	// first one's in-flight job alone.
	second := openWorkspace(t, root)
	n, err := second.Sweep()
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Sweep() removed %d, want 0", n)
	}

	if err := os.WriteFile(a.Path(), []byte("%PDF-1.4"), 0o600); err != nil {
		t.Fatalf("writing in-flight output after Sweep() = %v", err)
	}
	if err := a.Verify(); err != nil {
		t.Errorf("Verify() = %v, want nil", err)
	}
	if first.Dir() == second.Dir() {
		t.Errorf("both workspaces use %q", first.Dir())
	}
}

func TestWorkspace_Close(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	ws, err := NewWorkspace(root)
	if err != nil {
		t.Fatalf("NewWorkspace() error = %v", err)
	}
	if _, err := ws.Acquire("leftover"); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if err := ws.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := ws.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("root has %d entries after Close(), want 0", len(entries))
	}
}

func TestNewWorkspace_CreatesDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "a", "b")
	ws := openWorkspace(t, dir)

	if ws.Root() != dir {
		t.Errorf("Root() = %q, want %q", ws.Root(), dir)
	}
	if !strings.HasPrefix(ws.Dir(), filepath.Join(dir, runDirPrefix)) {
		t.Errorf("Dir() = %q, want a run directory under %q", ws.Dir(), dir)
	}
	if info, err := os.Stat(ws.Dir()); err != nil || !info.IsDir() {
		t.Errorf("workspace dir not created: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(filepath.Dir(ws.Dir()), ownerFileName))
	if err != nil {
		t.Fatalf("reading owner file: %v", err)
	}
	var owner runOwner
	if err := json.Unmarshal(data, &owner); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if owner.PID != os.Getpid() || owner.Instance != instanceID {
		t.Errorf("owner = %+v, want pid %d instance %s", owner, os.Getpid(), instanceID)
	}
}
